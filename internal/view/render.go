// Package view maps a published weather state to its text rendering.
package view

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fakhrymubarak/weather-lookup/internal/model"
)

const LoadingText = "Loading..."

// SpinnerFrames are cycled by interactive surfaces; Render uses the first.
var SpinnerFrames = []string{"|", "/", "-", "\\"}

// Render returns the body shown under the search control for st.
// Idle renders nothing.
func Render(st model.WeatherState) string {
	return RenderFrame(st, 0)
}

// RenderFrame is Render with the progress indicator at the given frame.
func RenderFrame(st model.WeatherState, frame int) string {
	switch st.Status {
	case model.StatusLoading:
		return Spinner(frame) + " " + LoadingText + "\n"
	case model.StatusError:
		return st.Message + "\n"
	case model.StatusSuccess:
		if st.Data == nil {
			return ""
		}
		return Details(*st.Data)
	default:
		return ""
	}
}

func Spinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return SpinnerFrames[frame%len(SpinnerFrames)]
}

// Details renders the full weather detail view.
func Details(p model.WeatherPayload) string {
	var b strings.Builder
	c := p.Current

	fmt.Fprintf(&b, "%s  %s\n\n", p.Location.Name, p.Location.Country)
	fmt.Fprintf(&b, "%s ° c\n", num(c.TempC))
	if icon := p.IconURL(); icon != "" {
		fmt.Fprintf(&b, "[icon] %s\n", icon)
	}
	fmt.Fprintf(&b, "%s, Feels Like %s°\n\n", c.Condition.Text, num(c.FeelsLikeC))

	tw := tabwriter.NewWriter(&b, 0, 0, 4, ' ', 0)
	rows := [][2]keyVal{
		{{"Humidity", fmt.Sprintf("%d%%", c.Humidity)}, {"Wind Speed", num(c.WindKph) + " kph"}},
		{{"Visibility", num(c.VisKm) + " km"}, {"Dew Point", num(c.DewpointC) + "°"}},
		{{"Precipitation", num(c.PrecipMm) + " mm"}, {"UV Index", num(c.UV)}},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t\n", row[0].value, row[1].value)
		fmt.Fprintf(tw, "  %s\t%s\t\n", row[0].key, row[1].key)
	}
	_ = tw.Flush()
	return b.String()
}

type keyVal struct {
	key   string
	value string
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
