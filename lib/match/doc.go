/*
Package match finds the catalog signature closest to a target string, usually a
User-Agent header.

# Cascade

A target runs through a fixed cascade of stages. The first stage producing a result
decides the match:

 1. device-id: the target is a device id (see catalog.DeviceID). The signature with
    exactly these profiles is returned, or the profiles alone if no signature has them.
 2. exact: the target equals a signature string.
 3. edit-distance: the signature strings with the lowest Levenshtein distance to the
    target, bounded by Options.MaxDistance times the target length.
 4. segment: the signatures sharing the first segment of the target, scored by the
    weighted distance of their segments.
 5. version: the same subset, scored by how closely the version numbers match.
 6. ris: the signature sharing the longest prefix with the target, if the prefix
    reaches the tolerance of the target.

If several candidates reach the best score of a stage, TieBreak picks one of them and
the method is MethodClosest.

Every distinct signature string is scored once. If several signatures share a string
the one with the lowest index is returned.

# Methods

The Method of a Result describes the quality of the match:

  - MethodExact: the target equals the signature string
  - MethodNearest: a single best candidate within the limits of the stage
  - MethodClosest: several equally scored candidates, decided by TieBreak
  - MethodNumeric: matched by version numbers or by device id
  - MethodNone: nothing matched

# Usage

	p, err := match.NewProvider(c, match.DefaultOptions())
	if err != nil {
		return err
	}

	// one-off
	res, err := p.Match(ua)

	// hot loop, no allocations per match
	req := match.NewRequest()
	for _, ua := range agents {
		if err := p.MatchInto(ua, req); err != nil {
			return err
		}
		use(req.Result())
	}

# Concurrency

Scans with more than Options.ParallelThreshold candidates are split into chunks and
scored by Options.Workers goroutines that share the best score found so far. The
result is identical to a sequential scan.

A Provider is safe for concurrent use, a Request is not.

# Metrics

Every match increments the counter "match.method.<Method>" and updates the timer
"match.duration" in the metrics registry of the catalog.
*/
package match
