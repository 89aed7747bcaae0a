package client

import (
	"sync"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
)

// NewLocalMatcher creates a matcher for a catalog loaded in process. The matcher
// owns the catalog and closes it in Close.
func NewLocalMatcher(c *catalog.Catalog, opts match.Options) (IMatcher, error) {
	provider, err := match.NewProvider(c, opts)
	if err != nil {
		return nil, err
	}

	return &localMatcher{
		provider: provider,
		requests: sync.Pool{
			New: func() any { return match.NewRequest() },
		},
	}, nil
}

type localMatcher struct {
	provider *match.Provider
	requests sync.Pool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IMatcher)
// --------------------------------------------------------------------------

func (m *localMatcher) Match(target string) (*common.MatchResult, error) {
	return m.match(func(r *match.Request) error {
		return m.provider.MatchInto(target, r)
	})
}

func (m *localMatcher) MatchStage(target string, stage match.Stage) (*common.MatchResult, error) {
	if stage == match.StageNone {
		return m.Match(target)
	}
	return m.match(func(r *match.Request) error {
		return m.provider.MatchWith(target, stage, r)
	})
}

func (m *localMatcher) MatchHeaders(headers map[string]string) (*common.MatchResult, error) {
	return m.match(func(r *match.Request) error {
		return m.provider.MatchHeaders(headers, r)
	})
}

func (m *localMatcher) MatchDeviceID(id string) (*common.MatchResult, error) {
	return m.match(func(r *match.Request) error {
		return m.provider.MatchWith(id, match.StageDeviceID, r)
	})
}

func (m *localMatcher) Profiles(property, value string) ([]common.ProfileInfo, error) {
	c := m.provider.Catalog()
	profiles, err := c.FindProfiles(property, value, nil)
	if err != nil {
		return nil, err
	}
	return common.NewProfileInfos(c, profiles), nil
}

func (m *localMatcher) Info() (*common.CatalogInfo, error) {
	return common.NewCatalogInfo(m.provider.Catalog()), nil
}

func (m *localMatcher) Close() error {
	return m.provider.Catalog().Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// match runs fn with a pooled request and converts the result. The Targets map
// is owned by the request, so it is copied before the request is reused.
func (m *localMatcher) match(fn func(r *match.Request) error) (*common.MatchResult, error) {
	r := m.requests.Get().(*match.Request)
	defer m.requests.Put(r)

	if err := fn(r); err != nil {
		return nil, err
	}
	res := r.Result().Clone()
	return common.NewMatchResult(m.provider.Catalog(), &res)
}
