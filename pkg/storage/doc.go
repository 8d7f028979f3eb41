// Package storage writes run artifacts (the JSON report and the CSV export)
// into the output directory.
//
// Every artifact goes through Manager.Save, which streams into a temporary
// file, syncs it and renames it over the destination. A crashed or failing
// write never leaves a half-written report behind; the previous file stays
// in place.
//
// Usage:
//
//	manager, err := storage.NewManager("output")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	path, err := manager.Save("results.json", func(w io.Writer) error {
//	    return json.NewEncoder(w).Encode(report)
//	})
package storage
