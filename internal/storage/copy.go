package storage

import "fmt"

// Collections lists every collection the local store writes.
var Collections = []string{CollectionGoals, CollectionUserData, CollectionSyncInfo}

// CopyAll copies every record from src into dst and returns the count per collection.
// Both backends must already be open.
func CopyAll(src, dst Backend) (map[string]int, error) {
	counts := make(map[string]int, len(Collections))
	for _, c := range Collections {
		recs, err := src.Scan(c, Filter{})
		if err != nil {
			return counts, fmt.Errorf("failed to read %s from %s: %w", c, src.Name(), err)
		}

		write := func(w Writer) error {
			for _, r := range recs {
				if err := w.Put(r); err != nil {
					return err
				}
			}
			return nil
		}

		if b, ok := dst.(Batcher); ok {
			err = b.Batch(write)
		} else {
			err = write(dst)
		}
		if err != nil {
			return counts, fmt.Errorf("failed to write %s to %s: %w", c, dst.Name(), err)
		}
		counts[c] = len(recs)
	}
	return counts, nil
}
