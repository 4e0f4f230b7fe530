// Package access decides which visibility classes a caller may retrieve.
package access

import "github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"

// Set is a set of permitted visibilities.
type Set struct {
	public  bool
	private bool
}

// Permitted returns the visibilities a caller may see.
//
// Unauthorized callers always get exactly {public}; a request for private is
// downgraded rather than rejected. Authorized callers get the requested subset,
// or both classes when nothing (or nothing recognizable) was requested.
func Permitted(authorized bool, requested []entity.Visibility) Set {
	if !authorized {
		return Set{public: true}
	}
	var s Set
	for _, v := range requested {
		switch v {
		case entity.Public:
			s.public = true
		case entity.Private:
			s.private = true
		}
	}
	if !s.public && !s.private {
		return Set{public: true, private: true}
	}
	return s
}

// Allows reports whether v is in the set.
func (s Set) Allows(v entity.Visibility) bool {
	switch v {
	case entity.Public:
		return s.public
	case entity.Private:
		return s.private
	}
	return false
}

// Values lists the set members.
func (s Set) Values() []entity.Visibility {
	out := make([]entity.Visibility, 0, 2)
	if s.public {
		out = append(out, entity.Public)
	}
	if s.private {
		out = append(out, entity.Private)
	}
	return out
}
