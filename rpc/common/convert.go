package common

import (
	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/match"
)

// --------------------------------------------------------------------------
// Payload Conversion
// --------------------------------------------------------------------------

// NewMatchResult converts a result to its wire form and resolves the property
// values of the matched profiles. The result may be read from a Request, nothing
// of it is retained except the Targets map.
func NewMatchResult(c *catalog.Catalog, res *match.Result) (*MatchResult, error) {
	out := &MatchResult{
		Target:             res.Target,
		Targets:            res.Targets,
		SignatureIndex:     -1,
		DeviceID:           res.DeviceID,
		ProfileIDs:         res.ProfileIDs(),
		Method:             res.Method,
		Stage:              res.Stage,
		Difference:         res.Difference,
		SignaturesCompared: res.SignaturesCompared,
	}
	if res.Signature != nil {
		out.Signature = res.Signature.String
		out.SignatureIndex = res.Signature.Index
	}

	if len(res.Profiles) == 0 {
		return out, nil
	}

	out.Properties = make(map[string][]string)
	for _, profile := range res.Profiles {
		for _, property := range c.Properties() {
			if property.Component != profile.Component {
				continue
			}
			values, err := c.ProfileValues(profile, property)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				out.Properties[property.Name] = append(out.Properties[property.Name], v.Name)
			}
		}
	}
	return out, nil
}

// NewProfileInfos describes profiles of a catalog
func NewProfileInfos(c *catalog.Catalog, profiles []*catalog.Profile) []ProfileInfo {
	components := c.Components()
	infos := make([]ProfileInfo, len(profiles))
	for i, p := range profiles {
		infos[i] = ProfileInfo{
			ID:        p.ID,
			Component: components[p.Component].Name,
			Rank:      p.Rank,
		}
	}
	return infos
}

// NewCatalogInfo describes a catalog and the state of its caches
func NewCatalogInfo(c *catalog.Catalog) *CatalogInfo {
	components := make([]string, len(c.Components()))
	for i, comp := range c.Components() {
		components[i] = comp.Name
	}

	return &CatalogInfo{
		Name:       c.Name(),
		Version:    c.Version(),
		Published:  c.Published(),
		Mode:       c.Mode().String(),
		Signatures: c.SignatureCount(),
		Profiles:   c.ProfileCount(),
		Values:     c.ValueCount(),
		Headers:    c.Headers(),
		Components: components,
		Caches:     c.CacheStats(),
		Pool:       c.PoolStats(),
	}
}
