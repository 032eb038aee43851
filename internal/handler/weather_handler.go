package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/model"
	"github.com/fakhrymubarak/weather-lookup/internal/service"
	"github.com/fakhrymubarak/weather-lookup/internal/view"
)

const searchLabel = "Search for any location"

type WeatherHandler struct {
	WeatherService service.WeatherServiceInterface
}

func NewWeatherHandler(svc ...service.WeatherServiceInterface) *WeatherHandler {
	var weatherService service.WeatherServiceInterface
	if len(svc) > 0 && svc[0] != nil {
		weatherService = svc[0]
	} else {
		weatherService = service.NewWeatherService(nil)
	}
	return &WeatherHandler{
		WeatherService: weatherService,
	}
}

func (h *WeatherHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		config.GetLogger().Errorw("could not encode json", "error", err)
	}
}

// HandleSearch starts a lookup for the location parameter and answers with
// the Loading state. The value is forwarded as is, even when empty.
func (h *WeatherHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	location := r.FormValue("location")
	h.WeatherService.Submit(location)

	h.writeJSONResponse(w, http.StatusAccepted, model.Response{
		Data:    h.WeatherService.State(),
		Message: "Accepted",
	})
}

// HandleState returns the current FetchState.
func (h *WeatherHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	st := h.WeatherService.State()
	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data:    st,
		Message: st.Status.String(),
	})
}

// HandleView renders the screen as plain text: the search label followed by
// the body for the current state.
func (h *WeatherHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	st := h.WeatherService.State()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "["+searchLabel+"] "+st.Query+"\n\n"+view.Render(st))
}
