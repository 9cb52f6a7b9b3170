// Package manifest reads and writes the build manifest.
//
// The build manifest is a JSON array with one entry per deployable unit:
//
//	[
//	  {
//	    "app": "svc1",
//	    "path": "../../src/Svc1",
//	    "version": "1.0",
//	    "yaml": "svc1-deployment.yaml|svc1-worker.yaml"
//	  }
//	]
//
// Entries are kept in file order and the array index is the update key.
// Rewriting the manifest only replaces the version of units that were
// rebuilt; every other field, unknown keys included, is written back in its
// original position.
package manifest
