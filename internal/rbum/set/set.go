// Package set implements the Set/SetCate/SetItem tree of spec.md §3,
// indexed by a fixed-width lexicographically-ordered sys_code path
// (spec.md §4.1's "Set path encoding") so subtree and depth queries
// are prefix/range scans instead of recursive parent-pointer walks
// (spec.md §9's ownership-paths-over-parent-pointers design note).
package set

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// segmentWidth is the fixed width of each sys_code segment; children
// append a zero-padded segment index so "LIKE parent||'%'" sorts
// children in insertion order.
const segmentWidth = 4

// Set is a named tree (e.g. a group hierarchy) scoped like any other
// RBUM entity.
type Set struct {
	Id       string `json:"id" db:"id"`
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	OwnPaths string `json:"ownPaths" db:"own_paths"`
}

// Cate is a node in a Set's tree.
type Cate struct {
	Id        string    `json:"id" db:"id"`
	SetId     string    `json:"setId" db:"set_id"`
	SysCode   string    `json:"sysCode" db:"sys_code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Item attaches an administrable entity to a Cate node.
type Item struct {
	Id       string `json:"id" db:"id"`
	CateId   string `json:"cateId" db:"cate_id"`
	RelItemId string `json:"relItemId" db:"rel_item_id"`
	Sort     int    `json:"sort" db:"sort"`
}

// ChildSysCode builds the sys_code for the next child under parent,
// given the count of existing siblings (their ordinal becomes the new
// segment, zero-padded to segmentWidth).
func ChildSysCode(parentSysCode string, siblingCount int) (string, error) {
	if siblingCount < 0 {
		return "", fmt.Errorf("siblingCount must be >= 0, got %d", siblingCount)
	}

	max := 1
	for i := 0; i < segmentWidth; i++ {
		max *= 10
	}

	if siblingCount >= max {
		return "", fmt.Errorf("too many siblings under %q: fixed width %d exhausted", parentSysCode, segmentWidth)
	}

	segment := fmt.Sprintf("%0*d", segmentWidth, siblingCount)

	if parentSysCode == "" {
		return segment, nil
	}

	return parentSysCode + segment, nil
}

// IsDescendant reports whether child's sys_code is a subtree member
// of parent (a strict-or-equal prefix match on segmentWidth
// boundaries).
func IsDescendant(parentSysCode, childSysCode string) bool {
	return strings.HasPrefix(childSysCode, parentSysCode)
}

// Depth counts the number of segmentWidth-wide segments in sysCode,
// i.e. the tree depth of the node (spec.md §4.1's "Depth queries count
// segments").
func Depth(sysCode string) int {
	if sysCode == "" {
		return 0
	}

	return len(sysCode) / segmentWidth
}

// LikePrefix returns the SQL LIKE pattern matching sysCode's entire
// subtree, for adapters that can't use a native range scan.
func LikePrefix(sysCode string) string {
	return sysCode + "%"
}

// Repository stores Set/Cate/Item rows, leaving sys_code assignment to
// Service so the storage layer never has to count siblings itself.
type Repository interface {
	InsertSet(ctx context.Context, s *Set) error
	InsertCate(ctx context.Context, c *Cate) error
	InsertItem(ctx context.Context, i *Item) error
	CountChildren(ctx context.Context, setID, parentSysCode string) (int, error)
	ListDescendants(ctx context.Context, setID, sysCodePrefix string) ([]Cate, error)
}

// Service is the kernel-equivalent surface for the Set tree: it owns
// sys_code assignment (spec.md §4.1's "Set path encoding") the way
// Kernel owns Item uniqueness and default Rels.
type Service struct {
	Repo  Repository
	NewID func() string
	Clock func() time.Time
}

// NewService builds a Service with real UUID/clock providers.
func NewService(repo Repository) *Service {
	return &Service{Repo: repo, NewID: uuid.NewString, Clock: time.Now}
}

// NewSet creates a new tree root.
func (s *Service) NewSet(ctx context.Context, code, name, ownPaths string) (*Set, error) {
	st := &Set{Id: s.NewID(), Code: code, Name: name, OwnPaths: ownPaths}

	if err := s.Repo.InsertSet(ctx, st); err != nil {
		return nil, err
	}

	return st, nil
}

// AddChildCate appends a new Cate under parentSysCode, assigning it
// the next sibling's sys_code. Pass "" as parentSysCode to add a root
// Cate.
func (s *Service) AddChildCate(ctx context.Context, setID, parentSysCode, name string) (*Cate, error) {
	count, err := s.Repo.CountChildren(ctx, setID, parentSysCode)
	if err != nil {
		return nil, err
	}

	sysCode, err := ChildSysCode(parentSysCode, count)
	if err != nil {
		return nil, err
	}

	cate := &Cate{Id: s.NewID(), SetId: setID, SysCode: sysCode, Name: name, CreatedAt: s.Clock()}

	if err := s.Repo.InsertCate(ctx, cate); err != nil {
		return nil, err
	}

	return cate, nil
}

// AttachItem binds relItemID to cateID at the given sort position.
func (s *Service) AttachItem(ctx context.Context, cateID, relItemID string, sort int) (*Item, error) {
	it := &Item{Id: s.NewID(), CateId: cateID, RelItemId: relItemID, Sort: sort}

	if err := s.Repo.InsertItem(ctx, it); err != nil {
		return nil, err
	}

	return it, nil
}

// Descendants lists every Cate in cate's subtree, cate included.
func (s *Service) Descendants(ctx context.Context, setID string, cate Cate) ([]Cate, error) {
	return s.Repo.ListDescendants(ctx, setID, cate.SysCode)
}
