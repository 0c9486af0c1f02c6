package catalog

import (
	"encoding/json"
	"strings"
)

// Source is one monitored alarm endpoint as registered in the remote
// manager. The manager's older deployments disagree on the id field name,
// so decoding tolerates id, Id and _id.
type Source struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Host     string `json:"host"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Version  string `json:"version"`
	PageSize int    `json:"pageSize"`
	Offset   int    `json:"offset"`
}

func (s *Source) UnmarshalJSON(data []byte) error {
	type alias Source
	var decoded struct {
		alias
		AltID   string `json:"Id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Source(decoded.alias)
	if s.ID == "" {
		s.ID = decoded.AltID
	}
	if s.ID == "" {
		s.ID = decoded.MongoID
	}
	return nil
}

// Normalize clamps the fields a sloppy registration can get wrong. Offsets
// are whole hours within a day's range of UTC, versions are stored
// uppercase, and page size is at least one.
func (s *Source) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.Username = strings.TrimSpace(s.Username)
	s.Version = strings.ToUpper(strings.TrimSpace(s.Version))
	if s.Offset < -12 {
		s.Offset = -12
	}
	if s.Offset > 12 {
		s.Offset = 12
	}
	if s.PageSize < 1 {
		s.PageSize = 100
	}
}

// Redacted returns a copy safe to hand to API consumers.
func (s Source) Redacted() Source {
	s.Password = ""
	return s
}
