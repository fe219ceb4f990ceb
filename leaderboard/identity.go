package leaderboard

import (
	"strings"
	"time"

	"github.com/warp/incentive-engine/model"
)

// unmappedPrefix names rows whose employee has no display name anywhere.
const unmappedPrefix = "Unmapped-"

// identity is the resolved directory view of one aggregated employee.
type identity struct {
	Name          string
	Matched       bool
	IsActive      bool
	InactiveSince *time.Time

	// Skip marks a directory entry that is inactive and has no HR
	// employee code. Such rows never reach the public board.
	Skip bool
}

// directory indexes the employee directory by id.
type directory struct {
	byID map[string]model.Employee
}

func newDirectory(emps []model.Employee) directory {
	d := directory{byID: make(map[string]model.Employee, len(emps))}
	for _, e := range emps {
		if id := strings.TrimSpace(e.ID); id != "" {
			d.byID[id] = e
		}
	}
	return d
}

// resolve applies the name chain: the score record's own name, then the
// directory's full name, then its alternate name, then "Unmapped-<id>".
// An employee with no directory entry is treated as active.
func (d directory) resolve(employeeID, recordName string) identity {
	id := identity{IsActive: true}

	emp, ok := d.byID[strings.TrimSpace(employeeID)]
	if ok {
		id.Matched = true
		id.IsActive = emp.ActiveFlag()
		id.InactiveSince = emp.InactiveSince
		id.Skip = emp.MarkedInactive() && strings.TrimSpace(emp.Code) == ""
	}

	switch {
	case strings.TrimSpace(recordName) != "":
		id.Name = strings.TrimSpace(recordName)
	case ok && strings.TrimSpace(emp.FullName) != "":
		id.Name = strings.TrimSpace(emp.FullName)
	case ok && strings.TrimSpace(emp.Name) != "":
		id.Name = strings.TrimSpace(emp.Name)
	case strings.TrimSpace(employeeID) != "":
		id.Name = unmappedPrefix + strings.TrimSpace(employeeID)
	}
	return id
}
