package match

import (
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dDetect/lib/catalog"
)

type headerValue struct {
	name  string
	value string
}

// headerValues returns the non-empty values of the catalog headers present in
// headers, in catalog order. Header names are compared case-insensitively.
func (p *Provider) headerValues(headers map[string]string) []headerValue {
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}

	var values []headerValue
	for _, name := range p.catalog.Headers() {
		if v := lower[strings.ToLower(name)]; v != "" {
			values = append(values, headerValue{name: name, value: v})
		}
	}
	return values
}

// MatchHeaders matches a set of request headers. The first catalog header present
// is the primary target. If the primary target matches nothing, the best result of
// the other catalog headers present is used instead. Otherwise, unless the primary
// result is exact, every other catalog header present is matched too, and its
// profiles replace the primary profiles of the components the header is listed for,
// if its result is exact or has a lower difference.
func (p *Provider) MatchHeaders(headers map[string]string, req *Request) error {
	start := time.Now()
	req.Reset()

	values := p.headerValues(headers)
	if len(values) == 0 {
		p.record(req, start)
		return nil
	}

	if err := p.run(values[0].value, req); err != nil {
		return err
	}

	if len(values) > 1 {
		var err error
		switch {
		case req.result.Stage == StageNone:
			err = p.adoptAuxiliary(values[1:], req)
		case req.result.Method != MethodExact:
			err = p.foldAuxiliary(values[1:], req)
		}
		if err != nil {
			return err
		}
	}

	req.result.Targets = make(map[string]string, len(values))
	for _, hv := range values {
		req.result.Targets[hv.name] = hv.value
	}

	p.record(req, start)
	return nil
}

// adoptAuxiliary replaces an empty primary result with the best auxiliary result:
// the first exact one, otherwise the first with the lowest difference
func (p *Provider) adoptAuxiliary(values []headerValue, req *Request) error {
	aux := p.requests.Get().(*Request)
	defer p.requests.Put(aux)

	compared := req.result.SignaturesCompared
	for _, hv := range values {
		aux.Reset()
		if err := p.run(hv.value, aux); err != nil {
			return err
		}
		r := aux.Result()
		compared += r.SignaturesCompared
		if r.Stage == StageNone || !improves(r, &req.result) {
			continue
		}

		req.profiles = append(req.profiles[:0], r.Profiles...)
		req.result = *r
		req.result.Profiles = req.profiles
	}

	req.result.SignaturesCompared = compared
	return nil
}

// improves reports if r is a better header result than current
func improves(r, current *Result) bool {
	switch {
	case current.Stage == StageNone:
		return true
	case current.Method == MethodExact:
		return false
	case r.Method == MethodExact:
		return true
	default:
		return r.Difference < current.Difference
	}
}

// foldAuxiliary matches the auxiliary headers and replaces profiles per component
func (p *Provider) foldAuxiliary(values []headerValue, req *Request) error {
	components := p.catalog.Components()
	primary := req.result.Difference

	// current profile per component
	req.slots = append(req.slots[:0], make([]*catalog.Profile, len(components))...)
	for _, profile := range req.result.Profiles {
		req.slots[profile.Component] = profile
	}

	aux := p.requests.Get().(*Request)
	defer p.requests.Put(aux)

	replaced := false
	for _, hv := range values {
		aux.Reset()
		if err := p.run(hv.value, aux); err != nil {
			return err
		}
		r := aux.Result()
		if r.Method == MethodNone {
			continue
		}
		if r.Method != MethodExact && r.Difference >= primary {
			continue
		}

		for _, profile := range r.Profiles {
			if !components[profile.Component].HasHeader(hv.name) {
				continue
			}
			if req.slots[profile.Component] != profile {
				req.slots[profile.Component] = profile
				replaced = true
			}
		}
	}

	if !replaced {
		return nil
	}

	// rebuild the result from the slots
	req.profiles = req.profiles[:0]
	ids := make([]string, len(components))
	for i, profile := range req.slots {
		ids[i] = "0"
		if profile != nil {
			req.profiles = append(req.profiles, profile)
			ids[i] = strconv.Itoa(profile.ID)
		}
	}

	r := &req.result
	r.Profiles = req.profiles
	r.DeviceID = strings.Join(ids, catalog.DeviceIDSeparator)

	s, ok, err := p.catalog.SignatureByDeviceID(r.DeviceID)
	if err != nil {
		return err
	}
	r.Signature = nil
	if ok {
		r.Signature = s
	}
	return nil
}
