// Package gae provides Google Cloud Datastore implementations of the
// account store interfaces. It supports multi-tenancy through Datastore
// namespaces.
//
// # Datastore Kinds
//
//   - User: accounts with profile data and provider linkages
//   - Email: one entity per address, enforcing email uniqueness
//   - AuthToken: password reset tokens
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "")  // default namespace
//	tokenStore := gae.NewTokenStore(client, "")
package gae
