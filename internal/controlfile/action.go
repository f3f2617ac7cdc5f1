package controlfile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the publish method a control file asks for.
type Action string

const (
	Replace Action = "Replace"
	Upsert  Action = "Upsert"
	Append  Action = "Append"
	Delete  Action = "Delete"
)

var actions = []Action{Replace, Upsert, Append, Delete}

// ParseAction accepts any casing of a known action and returns it in canonical form.
func ParseAction(s string) (Action, error) {
	for _, a := range actions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return Action(s), fmt.Errorf("unknown action %q, must be one of Replace, Upsert, Append or Delete", s)
}

func (a Action) Valid() bool {
	for _, known := range actions {
		if a == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON keeps unknown actions as-is so validation can report them.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		*a = Action(s)
		return nil
	}
	*a = parsed
	return nil
}
