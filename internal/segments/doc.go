// Package segments implements the segment registry: the seeded system
// catalog, custom segment lifecycle, and on-demand membership
// recomputation over a profile's customer population.
//
// The service layer contains all business logic and depends only on the
// repository interfaces defined in this package. Repository implementations
// live in repository/postgres/.
package segments
