package batchfile

import (
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// Report is the YAML form of a response batch
type Report struct {
	TxID   string        `yaml:"tx_id"`
	Groups []GroupReport `yaml:"groups"`
}

// GroupReport is the YAML form of one group response
type GroupReport struct {
	Group     int              `yaml:"group"`
	Status    string           `yaml:"status"`
	ErrorKind string           `yaml:"error_kind,omitempty"`
	Error     string           `yaml:"error,omitempty"`
	Matched   int64            `yaml:"matched"`
	Returned  int64            `yaml:"returned"`
	Aggregate any              `yaml:"aggregate,omitempty"`
	Created   []uint64         `yaml:"created,omitempty,flow"`
	Records   []map[string]any `yaml:"records,omitempty"`
}

// NewReport converts a response batch
func NewReport(resp *wire.ResponseBatch) *Report {
	r := &Report{TxID: resp.TxID, Groups: make([]GroupReport, 0, len(resp.Groups))}
	for _, g := range resp.Groups {
		gr := GroupReport{
			Group:    g.GroupID,
			Status:   g.Status.String(),
			Error:    g.Error,
			Matched:  g.Matched,
			Returned: g.Returned,
		}
		if g.Status == wire.StatusError {
			gr.ErrorKind = g.ErrorCode.String()
		}
		if g.Aggregate != nil {
			gr.Aggregate = exportValue(*g.Aggregate)
		}
		for _, c := range g.Commands {
			gr.Created = append(gr.Created, c.Created...)
		}
		for _, rec := range g.Records {
			m := make(map[string]any, len(rec.Properties)+1)
			m["id"] = rec.ID
			for _, p := range rec.Properties {
				m[p.Key] = exportValue(p.Value)
			}
			gr.Records = append(gr.Records, m)
		}
		r.Groups = append(r.Groups, gr)
	}
	return r
}

// Render marshals resp as YAML
func Render(resp *wire.ResponseBatch) ([]byte, error) {
	return yaml.Marshal(NewReport(resp))
}
