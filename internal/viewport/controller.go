package viewport

import (
	"fmt"
	"log/slog"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
	"fleet-view/internal/render"
)

// DefaultPadding es el margen en píxeles de cada fit.
const DefaultPadding = 40

// Policy decides which changes trigger a refit.
type Policy string

const (
	// PolicyStructural refits only when the positioned vehicle set, the
	// route set or the unassigned set changes.
	PolicyStructural Policy = "structural"
	// PolicyTick also refits on every vehicle movement.
	PolicyTick Policy = "tick"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyStructural, PolicyTick:
		return p, nil
	case "":
		return PolicyStructural, nil
	}
	return "", fmt.Errorf("viewport policy %q: want structural or tick", s)
}

type Action int

const (
	ActionNone Action = iota
	ActionCenter
	ActionFit
)

func (a Action) String() string {
	switch a {
	case ActionCenter:
		return "center"
	case ActionFit:
		return "fit"
	}
	return "none"
}

type Controller struct {
	r       render.Renderer
	logger  *slog.Logger
	policy  Policy
	padding int

	version uint64
	applied uint64
}

func New(r render.Renderer, policy Policy, padding int, lg *slog.Logger) *Controller {
	if padding <= 0 {
		padding = DefaultPadding
	}
	return &Controller{r: r, policy: policy, padding: padding, logger: lg.With("component", "viewport")}
}

// Bump records a structural change. The next Update recomputes the view.
func (c *Controller) Bump() { c.version++ }

func (c *Controller) Version() uint64 { return c.version }

// Update issues at most one camera command. moved reports vehicle movement
// in this pass; followed means selection follow already placed the camera,
// which overrides the fit for this pass.
func (c *Controller) Update(points []fleet.LatLng, moved, followed bool) Action {
	due := c.version != c.applied || (c.policy == PolicyTick && moved)
	if !due {
		return ActionNone
	}
	c.applied = c.version
	if followed {
		return ActionNone
	}

	switch len(points) {
	case 0:
		return ActionNone
	case 1:
		c.r.SetView(points[0], render.KeepZoom, true)
		observability.ViewportCommands.WithLabelValues("center").Inc()
		return ActionCenter
	}

	b, _ := render.BoundsOf(points)
	c.r.FitBounds(b, c.padding)
	observability.ViewportCommands.WithLabelValues("fit").Inc()
	c.logger.Debug("viewport fit", "points", len(points), "version", c.version)
	return ActionFit
}
