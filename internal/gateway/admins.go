package gateway

import "sort"

// AdminSet is the immutable allow-list of users who may run moderation commands.
type AdminSet struct {
	ids map[int64]struct{}
}

func NewAdminSet(ids []int64) *AdminSet {
	set := &AdminSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

func (a *AdminSet) IsAdmin(userID int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[userID]
	return ok
}

func (a *AdminSet) IDs() []int64 {
	if a == nil {
		return nil
	}
	ids := make([]int64, 0, len(a.ids))
	for id := range a.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(left, right int) bool { return ids[left] < ids[right] })
	return ids
}

func (a *AdminSet) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ids)
}
