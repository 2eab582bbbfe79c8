package normalize

import (
	"context"
	"encoding/base64"

	"github.com/sirupsen/logrus"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

// maxEnrichedElements caps page I/O per violation.
const maxEnrichedElements = 25

// enrich attaches geometry, screenshots and resolved selectors to elements.
// Every failure leaves the affected field unset.
func (n *Normalizer) enrich(ctx context.Context, page domain.PageHandle, violations []domain.ProcessedViolation) {
	for vi := range violations {
		v := &violations[vi]
		for ei := range v.Elements {
			if ei >= maxEnrichedElements || ctx.Err() != nil || page.Closed() {
				break
			}
			n.enrichElement(ctx, page, v.RuleID, &v.Elements[ei])
		}
	}
}

func (n *Normalizer) enrichElement(ctx context.Context, page domain.PageHandle, ruleID string, el *domain.Element) {
	if el.Selector == "" {
		return
	}
	log := n.log.WithFields(logrus.Fields{"rule": ruleID, "selector": el.Selector})

	if resolved, err := page.ResolveSelector(ctx, el.Selector); err == nil && resolved != "" {
		el.Selector = resolved
	} else if err != nil {
		log.WithError(err).Debug("selector not resolved")
	}

	if box, err := page.BoundingBox(ctx, el.Selector); err == nil {
		el.BoundingBox = box
	} else {
		log.WithError(err).Debug("bounding box unavailable")
	}

	if png, err := page.Screenshot(ctx, el.Selector); err == nil && len(png) > 0 {
		el.Screenshot = base64.StdEncoding.EncodeToString(png)
	} else if err != nil {
		log.WithError(err).Debug("screenshot unavailable")
	}
}
