package bill

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	SaveGroup(group *Group) error
	GetGroup(id string) (*Group, error)
	ListGroups(member string) ([]*Group, error)

	SaveBill(bill *Bill) error
	GetBill(id string) (*Bill, error)
	ListBillsByGroup(groupID string) ([]*Bill, error)
}

type memoryStore struct {
	groups map[string]*Group
	bills  map[string]*Bill
	lock   sync.RWMutex
}

func NewMemoryStore() Store {
	return &memoryStore{
		groups: make(map[string]*Group),
		bills:  make(map[string]*Bill),
	}
}

func (s *memoryStore) SaveGroup(group *Group) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.groups[group.ID] = group
	return nil
}

func (s *memoryStore) GetGroup(id string) (*Group, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return group, nil
}

func (s *memoryStore) ListGroups(member string) ([]*Group, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var result []*Group
	for _, group := range s.groups {
		for _, m := range group.Members {
			if m == member {
				result = append(result, group)
				break
			}
		}
	}
	return result, nil
}

func (s *memoryStore) SaveBill(bill *Bill) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.bills[bill.ID] = bill
	return nil
}

func (s *memoryStore) GetBill(id string) (*Bill, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	bill, ok := s.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	return bill, nil
}

func (s *memoryStore) ListBillsByGroup(groupID string) ([]*Bill, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var result []*Bill
	for _, bill := range s.bills {
		if bill.GroupID == groupID {
			result = append(result, bill)
		}
	}
	return result, nil
}
