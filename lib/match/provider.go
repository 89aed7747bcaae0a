package match

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("match")

// Provider matches targets against one catalog.
//
// Thread-safety: a Provider is safe for concurrent use as long as every goroutine
// uses its own Request.
type Provider struct {
	catalog *catalog.Catalog
	opts    Options
	corpus  *corpus

	editDistance EditDistanceMatcher
	segment      SegmentMatcher
	version      VersionMatcher
	ris          RISMatcher

	requests sync.Pool

	methods  map[Method]metrics.Counter
	duration metrics.Timer
}

// NewProvider indexes the signature strings of the catalog and returns a provider.
// Match counters are registered in the registry of the catalog.
func NewProvider(c *catalog.Catalog, opts Options) (*Provider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	cp, err := newCorpus(c, opts.Segments)
	if err != nil {
		return nil, fmt.Errorf("index signatures: %w", err)
	}

	sc := newScanner(opts.Workers, opts.ParallelThreshold)
	p := &Provider{
		catalog:      c,
		opts:         opts,
		corpus:       cp,
		editDistance: EditDistanceMatcher{scanner: sc},
		segment:      SegmentMatcher{Rule: opts.Segments, scanner: sc},
		version:      VersionMatcher{Rule: opts.Versions},
		ris:          RISMatcher{Tolerance: opts.Tolerance},
		requests: sync.Pool{
			New: func() any { return NewRequest() },
		},
		methods:  make(map[Method]metrics.Counter, len(Methods)),
		duration: metrics.GetOrRegisterTimer("match.duration", c.Registry()),
	}
	for _, m := range Methods {
		p.methods[m] = metrics.GetOrRegisterCounter("match.method."+m.String(), c.Registry())
	}

	Logger.Infof("indexed %d distinct strings of %d signatures in %s (workers: %d, parallel threshold: %d)",
		len(cp.strings), c.SignatureCount(), time.Since(start), opts.Workers, opts.ParallelThreshold)
	return p, nil
}

// Catalog returns the catalog of the provider
func (p *Provider) Catalog() *catalog.Catalog { return p.catalog }

// Options returns the options of the provider
func (p *Provider) Options() Options { return p.opts }

// --------------------------------------------------------------------------
// Matching
// --------------------------------------------------------------------------

// Match matches target with a pooled request and returns a copy of the result
func (p *Provider) Match(target string) (Result, error) {
	req := p.requests.Get().(*Request)
	defer p.requests.Put(req)

	if err := p.MatchInto(target, req); err != nil {
		return Result{}, err
	}
	return req.Result().Clone(), nil
}

// MatchInto runs the cascade for target and stores the result in req.
// Finding nothing is not an error, the result then has MethodNone.
func (p *Provider) MatchInto(target string, req *Request) error {
	start := time.Now()
	req.Reset()

	if err := p.run(target, req); err != nil {
		return err
	}

	p.record(req, start)
	return nil
}

// run tries the stages of the cascade until one produces a result
func (p *Provider) run(target string, req *Request) error {
	req.result.Target = target
	if target == "" {
		return nil
	}

	for _, stage := range cascade {
		ok, err := p.runStage(stage, target, req)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return nil
}

// MatchWith runs a single stage for target. If the stage finds nothing the result has
// MethodNone.
func (p *Provider) MatchWith(target string, stage Stage, req *Request) error {
	start := time.Now()
	req.Reset()
	req.result.Target = target

	if target != "" && stage != StageNone {
		if _, err := p.runStage(stage, target, req); err != nil {
			return err
		}
	}

	p.record(req, start)
	return nil
}

// MatchDeviceID resolves a device id. Unknown or malformed ids yield MethodNone.
func (p *Provider) MatchDeviceID(id string) (Result, error) {
	req := p.requests.Get().(*Request)
	defer p.requests.Put(req)

	if err := p.MatchWith(id, StageDeviceID, req); err != nil {
		return Result{}, err
	}
	return req.Result().Clone(), nil
}

func (p *Provider) record(req *Request, start time.Time) {
	if r := &req.result; r.Stage == StageNone {
		// no match never carries entities
		r.Method = MethodNone
		r.Signature = nil
		r.Profiles = req.profiles[:0]
		r.Difference = 0
		r.DeviceID = ""
	}
	p.methods[req.result.Method].Inc(1)
	p.duration.UpdateSince(start)
}

// runStage runs one stage and reports if it produced a result
func (p *Provider) runStage(stage Stage, target string, req *Request) (bool, error) {
	cp := p.corpus

	switch stage {
	case StageDeviceID:
		return p.matchDeviceID(target, req)

	case StageExact:
		e, ok := cp.lookup(target)
		if !ok {
			return false, nil
		}
		return true, p.resolve(req, stage, cp.signature(e), MethodExact, 0)

	case StageEditDistance:
		req.result.SignaturesCompared += len(cp.all)
		rs := p.editDistance.Match(target, cp.strings, cp.all, p.opts.limit(target), req)
		if !rs.Found() {
			return false, nil
		}
		if rs.Distance == 0 {
			return true, p.resolve(req, stage, cp.signature(rs.Candidates[0]), MethodExact, 0)
		}
		return true, p.resolveSet(req, stage, target, rs, MethodNearest)

	case StageSegment:
		subset := cp.subset(target, p.opts.Segments)
		req.result.SignaturesCompared += len(subset)
		rs := p.segment.Match(target, cp.strings, subset, req)
		if !rs.Found() {
			return false, nil
		}
		return true, p.resolveSet(req, stage, target, rs, MethodNearest)

	case StageVersion:
		subset := cp.subset(target, p.opts.Segments)
		req.result.SignaturesCompared += len(subset)
		rs := p.version.Match(target, cp.strings, subset, req)
		if !rs.Found() {
			return false, nil
		}
		e := rs.Candidates[0]
		if len(rs.Candidates) > 1 {
			e = TieBreak(target, cp.strings, rs.Candidates)
		}
		return true, p.resolve(req, stage, cp.signature(e), MethodNumeric, rs.Distance)

	case StageRIS:
		req.result.SignaturesCompared += len(cp.all)
		e, prefix, ok := p.ris.Match(target, cp.strings, cp.all)
		if !ok {
			return false, nil
		}
		return true, p.resolve(req, stage, cp.signature(e), MethodNearest, len(target)-prefix)

	default:
		return false, fmt.Errorf("unknown stage %s", stage)
	}
}

// resolveSet resolves a scored set: a single candidate keeps method, ties are decided
// by TieBreak and yield MethodClosest
func (p *Provider) resolveSet(req *Request, stage Stage, target string, rs ResultSet, method Method) error {
	e := rs.Candidates[0]
	if len(rs.Candidates) > 1 {
		e = TieBreak(target, p.corpus.strings, rs.Candidates)
		method = MethodClosest
	}
	return p.resolve(req, stage, p.corpus.signature(e), method, rs.Distance)
}

// resolve fills the result of req with a signature and its profiles
func (p *Provider) resolve(req *Request, stage Stage, signature int, method Method, difference int) error {
	s, err := p.catalog.Signature(signature)
	if err != nil {
		return err
	}

	for _, pi := range s.Profiles {
		if pi < 0 {
			continue
		}
		profile, err := p.catalog.Profile(int(pi))
		if err != nil {
			return err
		}
		req.profiles = append(req.profiles, profile)
	}

	deviceID, err := p.catalog.DeviceID(s)
	if err != nil {
		return err
	}

	r := &req.result
	r.Signature = s
	r.Profiles = req.profiles
	r.Difference = difference
	r.Method = method
	r.DeviceID = deviceID
	r.Stage = stage
	return nil
}

// matchDeviceID resolves a well-formed device id: the signature with exactly these
// profiles if there is one, otherwise the profiles alone
func (p *Provider) matchDeviceID(id string, req *Request) (bool, error) {
	ids, err := p.catalog.ParseDeviceID(id)
	if err != nil {
		return false, nil
	}

	s, ok, err := p.catalog.SignatureByDeviceID(id)
	if err != nil {
		return false, err
	}
	if ok {
		return true, p.resolve(req, StageDeviceID, s.Index, MethodNumeric, 0)
	}

	for component, profileID := range ids {
		if profileID == 0 {
			continue
		}
		profile, err := p.catalog.ProfileByID(profileID)
		if err != nil {
			return false, err
		}
		if profile == nil || profile.Component != component {
			req.profiles = req.profiles[:0]
			return false, nil
		}
		req.profiles = append(req.profiles, profile)
	}
	if len(req.profiles) == 0 {
		return false, nil
	}

	r := &req.result
	r.Profiles = req.profiles
	r.Method = MethodNumeric
	r.DeviceID = id
	r.Stage = StageDeviceID
	return true, nil
}
