package compliance

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/simulation"
)

// Kinds for stage failures that do not come from the simulation detector
const (
	KindInvalidRequest simulation.ReasonKind = "invalid_request"
	KindStageOrder     simulation.ReasonKind = "stage_order"
)

// Outcome is the result of one gate stage. A failed outcome carries the stage
// it failed at and is routed to quarantine by the caller.
type Outcome struct {
	Passed bool
	Stage  mention.Stage
	Kind   simulation.ReasonKind
	Reason string
}

func pass(stage mention.Stage) Outcome {
	return Outcome{Passed: true, Stage: stage}
}

func fail(stage mention.Stage, kind simulation.ReasonKind, reason string) Outcome {
	return Outcome{Stage: stage, Kind: kind, Reason: reason}
}

// Request is what the generation stage validates before an adapter is called
type Request struct {
	EntityName string
	Adapter    string
	Queries    []string
}

// Gate runs items through generation, approval and deployment in strict order
type Gate struct {
	detector *simulation.Detector
	logger   *logger.Logger
}

// NewGate creates a compliance gate backed by a simulation detector
func NewGate(detector *simulation.Detector, log *logger.Logger) *Gate {
	return &Gate{
		detector: detector,
		logger:   log.WithComponent("compliance"),
	}
}

// Generate validates a scan request for one adapter call. A failure here
// means the adapter is never invoked.
func (g *Gate) Generate(req Request) Outcome {
	switch {
	case strings.TrimSpace(req.EntityName) == "":
		return fail(mention.StageGeneration, KindInvalidRequest, "entity name is empty")
	case strings.TrimSpace(req.Adapter) == "":
		return fail(mention.StageGeneration, KindInvalidRequest, "source adapter not identified")
	case len(req.Queries) == 0:
		return fail(mention.StageGeneration, KindInvalidRequest, "no queries generated")
	}
	return pass(mention.StageGeneration)
}

// Approve runs the simulation detector on an item at the approval stage and
// advances it to deployment on success.
func (g *Gate) Approve(item *mention.Item) Outcome {
	if item.Stage != mention.StageApproval {
		return g.outOfOrder(item, mention.StageApproval)
	}

	if strings.TrimSpace(item.Content) == "" {
		return fail(mention.StageApproval, simulation.ReasonEmptyContent, "empty content")
	}

	verdict := g.detector.Detect(item.Content, item.Platform, item.URL)
	item.Verdict = verdict
	if !verdict.Accepted {
		return fail(mention.StageApproval, verdict.Kind, verdict.Reason)
	}

	item.Stage = mention.StageDeployment
	return pass(mention.StageApproval)
}

// Deploy re-checks content and URL immediately before the item is handed to
// the sink. The item must have passed approval.
func (g *Gate) Deploy(item *mention.Item) Outcome {
	if item.Stage != mention.StageDeployment {
		return g.outOfOrder(item, mention.StageDeployment)
	}

	if strings.TrimSpace(item.Content) == "" {
		return fail(mention.StageDeployment, simulation.ReasonEmptyContent, "deployment re-check: empty content")
	}

	if v := g.detector.CheckURL(item.URL); !v.Accepted {
		return fail(mention.StageDeployment, v.Kind, "deployment re-check: "+v.Reason)
	}

	if v := g.detector.Detect(item.Content, item.Platform, item.URL); !v.Accepted {
		item.Verdict = v
		return fail(mention.StageDeployment, v.Kind, "deployment re-check: "+v.Reason)
	}

	item.Stage = mention.StageAccepted
	return pass(mention.StageDeployment)
}

func (g *Gate) outOfOrder(item *mention.Item, want mention.Stage) Outcome {
	g.logger.Warn("Item presented to the wrong compliance stage",
		zap.String("want", string(want)),
		zap.String("have", string(item.Stage)),
		zap.String("adapter", item.Adapter),
	)
	return fail(want, KindStageOrder, fmt.Sprintf("item at stage %q cannot enter %s", item.Stage, want))
}
