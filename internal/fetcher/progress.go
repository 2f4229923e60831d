package fetcher

import (
	"math"
	"strconv"
	"strings"

	"github.com/veranemoloko/vidbatch/internal/domain"
)

const progressPrefix = "vbprogress"

// progressTemplate makes yt-dlp print one parseable line per progress tick.
// Missing values are printed as NA.
var progressTemplate = "download:" + progressPrefix +
	" %(progress.status)s" +
	" %(progress.downloaded_bytes)s" +
	" %(progress.total_bytes)s" +
	" %(progress.total_bytes_estimate)s" +
	" %(progress.speed)s" +
	" %(progress.eta)s"

// Update is one progress tick reported by yt-dlp.
type Update struct {
	Status        string
	Downloaded    float64
	Total         float64
	TotalEstimate float64
	Speed         float64
	ETA           float64
}

// Finished reports whether the tick marks the end of a file download.
func (u Update) Finished() bool {
	return u.Status == "finished"
}

// Progress converts the tick into the wire form. While downloading the
// percent is computed from the known or estimated total and rounded to one
// decimal. A finished tick is reported as 100%.
func (u Update) Progress() domain.Progress {
	if u.Finished() {
		percent := 100.0
		eta := 0.0
		return domain.Progress{
			Percent:    &percent,
			Downloaded: &u.Downloaded,
			Total:      &u.Total,
			Speed:      &u.Speed,
			ETA:        &eta,
		}
	}

	total := u.Total
	if total == 0 {
		total = u.TotalEstimate
	}
	percent := 0.0
	if total > 0 {
		percent = math.Round(u.Downloaded/total*1000) / 10
	}

	return domain.Progress{
		Percent:    &percent,
		Downloaded: &u.Downloaded,
		Total:      &total,
		Speed:      &u.Speed,
		ETA:        &u.ETA,
	}
}

// ParseProgressLine parses a line printed with progressTemplate.
func ParseProgressLine(line string) (Update, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 7 || fields[0] != progressPrefix {
		return Update{}, false
	}

	return Update{
		Status:        fields[1],
		Downloaded:    parseFloat(fields[2]),
		Total:         parseFloat(fields[3]),
		TotalEstimate: parseFloat(fields[4]),
		Speed:         parseFloat(fields[5]),
		ETA:           parseFloat(fields[6]),
	}, true
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
