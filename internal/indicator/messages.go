package indicator

import "github.com/rbright/cluely/internal/pipeline"

// Freedesktop urgency levels.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

type style struct {
	icon    string
	urgency byte
}

func styleFor(variant pipeline.Variant) style {
	switch variant {
	case pipeline.VariantError:
		return style{icon: "dialog-error", urgency: urgencyCritical}
	case pipeline.VariantSuccess:
		return style{icon: "emblem-ok-symbolic", urgency: urgencyNormal}
	default:
		return style{icon: "dialog-information", urgency: urgencyLow}
	}
}
