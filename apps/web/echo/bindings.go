package echoweb

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/humanistchoir/members/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindIDs reads the repeated ?id= query parameter; malformed values are skipped.
func bindIDs(ctx echo.Context) []int64 {
	vals := ctx.QueryParams()["id"]
	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
