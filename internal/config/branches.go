package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// branchFile is the BRANCH_MAP_FILE layout:
//
//	branches:
//	  BJ:
//	    folder_id: 1B8-...
//	    sheet: NPWPKTP BJ (NEW)
type branchFile struct {
	Branches map[string]struct {
		FolderID string `yaml:"folder_id"`
		Sheet    string `yaml:"sheet"`
	} `yaml:"branches"`
}

func LoadBranchFile(path string) (*domain.BranchMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load branch file", err)
	}
	return ParseBranches(data)
}

func ParseBranches(data []byte) (*domain.BranchMap, error) {
	var file branchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse branch file", fmt.Errorf("yaml: %w", err))
	}
	folders := make(map[string]string, len(file.Branches))
	sheets := make(map[string]string, len(file.Branches))
	for code, b := range file.Branches {
		folders[code] = b.FolderID
		sheets[code] = b.Sheet
	}
	return domain.NewBranchMap(folders, sheets)
}

func DefaultFolderMap() map[string]string {
	return map[string]string{
		"BJ":      "1B8-vxVXYjcG5m7aqnqFHjuShphvfjMo4",
		"BJM":     "15rLbNaQ-_DvExm86HBlevGqcTLJYkT0v",
		"SBY":     "15pjmJNcr2bdxDKBwm6DZmGm4FebQfZ0W",
		"SMD-BPN": "1-DJINheeXhZT-ugOCAI0v8VnQOT4Zqo3",
		"SMG":     "1-BbhmDkHanpCBgLyl46NeBXa-B_ByYBh",
	}
}

// DefaultSheetMap: SBY and BJM share one sheet.
func DefaultSheetMap() map[string]string {
	return map[string]string{
		"BJ":      "NPWPKTP BJ (NEW)",
		"SMG":     "NPWPKTP BBN SMG (NEW)",
		"SBY":     "NPWPKTP BBN SBY-BJM (NEW)",
		"BJM":     "NPWPKTP BBN SBY-BJM (NEW)",
		"SMD-BPN": "NPWPKTP BBN SMD-BPP (NEW)",
	}
}
