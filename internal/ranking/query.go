package ranking

import (
	"net/url"
	"strings"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
)

var filtersNone filters.Set

// Request names the barriers to rank: a kind, a layer, the selected unit ids
// of that layer and the active filters.
type Request struct {
	Kind    model.BarrierKind
	Layer   model.LayerKind
	UnitIDs []string
	Filters filters.Set
}

// QueryParams serializes ids and filters as "id=A,B&dim=v1,v2". Unconstrained
// dimensions are omitted. With neither ids nor constraints the result is "".
func QueryParams(ids []string, fs filters.Set) string {
	active := fs.Active()
	if len(ids) == 0 && len(active) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("id=")
	writeList(&b, ids)
	for _, e := range active {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(e.Dimension))
		b.WriteByte('=')
		writeList(&b, e.Values)
	}
	return b.String()
}

func writeList(b *strings.Builder, vals []string) {
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(url.QueryEscape(v))
	}
}
