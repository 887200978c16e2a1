package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-installer/internal/allocator"
	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// maxUnits bounds the units query parameter.
const maxUnits = 64

// availabilityResponse is the response body for GET .../availability.
type availabilityResponse struct {
	CentralID  string                       `json:"central_id"`
	Direction  hardware.Direction           `json:"direction"`
	Ports      []allocator.PortAvailability `json:"ports"`
	Suggestion *allocator.Suggestion        `json:"suggestion,omitempty"`
	Notice     *Notice                      `json:"notice,omitempty"`
}

// menuResponse is the response body for GET .../menu.
type menuResponse struct {
	CentralID string              `json:"central_id"`
	Direction hardware.Direction  `json:"direction"`
	Ports     []hardware.MenuPort `json:"ports"`
	Notice    *Notice             `json:"notice,omitempty"`
}

// placementResponse is the response body for GET .../placement.
type placementResponse struct {
	DeviceID string `json:"device_id"`
	Placed   bool   `json:"placed"`
	Port     *int   `json:"port,omitempty"`
	Slot     *int   `json:"slot,omitempty"`
}

// centralParams extracts the central id and direction from the route.
// It writes a 400 and returns false when the direction is not recognised.
func centralParams(w http.ResponseWriter, r *http.Request) (string, hardware.Direction, bool) {
	centralID := chi.URLParam(r, "centralID")
	dir, err := hardware.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		writeBadRequest(w, "direction must be input or output")
		return "", "", false
	}
	return centralID, dir, true
}

// handleAvailability reports free capacity per port.
//
// Failures to read the hardware degrade to an empty port list with a notice;
// the status stays 200 so the form can render.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	centralID, dir, ok := centralParams(w, r)
	if !ok {
		return
	}

	units := 0
	if raw := r.URL.Query().Get("units"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxUnits {
			writeBadRequest(w, "units must be between 1 and "+strconv.Itoa(maxUnits))
			return
		}
		units = n
	}

	resp := availabilityResponse{CentralID: centralID, Direction: dir}
	ports, err := s.alloc.Scan(r.Context(), centralID, dir)
	resp.Ports = ports
	if err != nil {
		resp.Notice = noticeFor(err)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if units > 0 {
		if sug, found := allocator.Suggest(ports, units); found {
			resp.Suggestion = &sug
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMenu returns the device tree of a central's direction.
func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	centralID, dir, ok := centralParams(w, r)
	if !ok {
		return
	}

	ports, err := s.alloc.Menu(r.Context(), centralID, dir)
	resp := menuResponse{CentralID: centralID, Direction: dir, Ports: ports}
	if err != nil {
		resp.Notice = noticeFor(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePlacement reports where a device is wired.
//
// An unplaced device is a normal answer. When the hardware cannot be read the
// placement is unknown and the response is 503.
func (s *Server) handlePlacement(w http.ResponseWriter, r *http.Request) {
	centralID, dir, ok := centralParams(w, r)
	if !ok {
		return
	}
	deviceID := chi.URLParam(r, "deviceID")

	p, found, err := s.alloc.Locate(r.Context(), deviceID, centralID, dir)
	if err != nil {
		n := noticeFor(err)
		writeError(w, http.StatusServiceUnavailable, n.Code, n.Message)
		return
	}

	resp := placementResponse{DeviceID: deviceID, Placed: found}
	if found {
		resp.Port, resp.Slot = &p.Port, &p.Slot
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInvalidate drops cached snapshots so the next read refetches.
// The direction "all" refreshes both pools.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	centralID := chi.URLParam(r, "centralID")

	var dir hardware.Direction
	if raw := chi.URLParam(r, "direction"); raw != "all" {
		parsed, err := hardware.ParseDirection(raw)
		if err != nil {
			writeBadRequest(w, "direction must be input, output or all")
			return
		}
		dir = parsed
	}

	if err := s.alloc.Invalidate(r.Context(), centralID, dir); err != nil {
		if errors.Is(err, hardware.ErrInvalidDirection) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("snapshot invalidation failed",
			"central_id", centralID,
			"direction", string(dir),
			"error", err,
		)
		writeInternalError(w, "failed to refresh snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
