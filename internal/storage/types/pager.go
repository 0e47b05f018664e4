package types

import "strings"

// Pager groups a key-ordered stream of object summaries into a single
// ListOutput page, applying the prefix, delimiter, continuation token and
// page size of a ListInput the way S3 does. Backends without native
// delimiter listings feed it rows in ascending byte order of key.
type Pager struct {
	in       ListInput
	maxKeys  int
	out      *ListOutput
	count    int
	lastPref string
}

// NewPager starts a page for in.
func NewPager(in ListInput) *Pager {
	maxKeys := int(in.MaxKeys)
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Pager{in: in, maxKeys: maxKeys, out: &ListOutput{}}
}

// Add offers the next summary. It returns false once the page is full and
// the caller should stop reading.
func (p *Pager) Add(s ObjectSummary) bool {
	if !strings.HasPrefix(s.Key, p.in.Prefix) {
		return true
	}
	if p.in.ContinuationToken != "" && s.Key <= p.in.ContinuationToken {
		return true
	}

	if p.in.Delimiter != "" {
		rest := s.Key[len(p.in.Prefix):]
		if idx := strings.Index(rest, p.in.Delimiter); idx >= 0 {
			cp := p.in.Prefix + rest[:idx+len(p.in.Delimiter)]
			if cp == p.lastPref {
				p.out.NextContinuationToken = s.Key
				return true
			}
			if p.count == p.maxKeys {
				p.out.IsTruncated = true
				return false
			}
			p.lastPref = cp
			p.out.CommonPrefixes = append(p.out.CommonPrefixes, cp)
			p.out.NextContinuationToken = s.Key
			p.count++
			return true
		}
	}

	if p.count == p.maxKeys {
		p.out.IsTruncated = true
		return false
	}
	p.out.Objects = append(p.out.Objects, s)
	p.out.NextContinuationToken = s.Key
	p.count++
	return true
}

// Output returns the finished page.
func (p *Pager) Output() *ListOutput {
	if !p.out.IsTruncated {
		p.out.NextContinuationToken = ""
	}
	return p.out
}
