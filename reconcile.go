package reftracker

// reconcileResult is one consistent observation of a v1 tracker against a
// requested key batch: refcount and store version from the same atomic read
// as the membership split, so a CAS write based on it can never pair a stale
// count with fresh membership.
type reconcileResult struct {
	refcount uint32
	version  uint64

	// Deduplicated requested keys, split by current sub-map membership,
	// in first-occurrence input order.
	present []string
	absent  []string
}

// reconcileV1 determines per-key membership for the batch using a single
// batched lookup: one network round trip regardless of batch size.
func reconcileV1(store ObjectStore, name string, keys []string) (reconcileResult, error) {
	uniq := dedupKeys(keys)

	res, err := store.Read(name, uniq)
	if err != nil {
		return reconcileResult{}, err
	}

	refcount, err := decodeRefcountV1(res.Payload)
	if err != nil {
		return reconcileResult{}, err
	}

	rec := reconcileResult{
		refcount: refcount,
		version:  res.Version,
	}
	for _, key := range uniq {
		if res.Present[key] {
			rec.present = append(rec.present, key)
		} else {
			rec.absent = append(rec.absent, key)
		}
	}
	return rec, nil
}

// dedupKeys drops repeated keys, keeping first-occurrence order. Duplicate
// keys in a request batch must collapse to a single membership change.
func dedupKeys(keys []string) []string {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, key)
	}
	return uniq
}
