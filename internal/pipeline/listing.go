package pipeline

import (
	"fmt"
	"time"
)

// listingURL builds the date-bounded listing URL for one page of the
// observation index. Page zero omits the page parameter, matching how
// the source site links its own pagination.
func listingURL(base string, start, end time.Time, page int) string {
	url := fmt.Sprintf(
		"%s/observations?rid=All&term=All&fodv%%5Bmin%%5D%%5Bdate%%5D=%02d/%02d/%d&fodv%%5Bmax%%5D%%5Bdate%%5D=%02d/%02d/%d",
		base,
		start.Month(), start.Day(), start.Year(),
		end.Month(), end.Day(), end.Year(),
	)
	if page > 0 {
		url += fmt.Sprintf("&page=%d", page)
	}
	return url
}
