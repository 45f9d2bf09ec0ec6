// Package services defines the shared error taxonomy and context plumbing
// used by the external processing clients and the pipeline stages that
// invoke them.
package services
