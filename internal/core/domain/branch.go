package domain

import (
	"fmt"
	"sort"
	"strings"
)

type Branch struct {
	Code      string
	FolderID  string
	SheetName string
}

// BranchMap is the closed set of save locations. It is read-only after
// construction and safe for concurrent use.
type BranchMap struct {
	branches map[string]Branch
	codes    []string
}

// NewBranchMap requires both maps to share the same key set.
func NewBranchMap(folders, sheets map[string]string) (*BranchMap, error) {
	if len(folders) == 0 {
		return nil, WrapError(ErrConfiguration, "branch map", fmt.Errorf("no branches configured"))
	}

	var problems []string
	branches := make(map[string]Branch, len(folders))
	for code, folderID := range folders {
		sheet, ok := sheets[code]
		if !ok {
			problems = append(problems, fmt.Sprintf("branch %s has a folder but no sheet", code))
			continue
		}
		if strings.TrimSpace(folderID) == "" || strings.TrimSpace(sheet) == "" {
			problems = append(problems, fmt.Sprintf("branch %s has an empty folder or sheet", code))
			continue
		}
		branches[code] = Branch{Code: code, FolderID: folderID, SheetName: sheet}
	}
	for code := range sheets {
		if _, ok := folders[code]; !ok {
			problems = append(problems, fmt.Sprintf("branch %s has a sheet but no folder", code))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, WrapError(ErrConfiguration, "branch map", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}

	codes := make([]string, 0, len(branches))
	for code := range branches {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return &BranchMap{branches: branches, codes: codes}, nil
}

func (m *BranchMap) Lookup(code string) (Branch, bool) {
	b, ok := m.branches[code]
	return b, ok
}

// Codes returns branch codes in sorted order.
func (m *BranchMap) Codes() []string {
	return append([]string(nil), m.codes...)
}
