// Package services provides the centralized service registry for wardend.
//
// Registry pattern for accessing the core services (submission pipeline,
// read views, store, similarity index). Use NewRegistry() to create a
// registry with service instances, then accessor methods to retrieve
// individual services.
package services
