// Package classify assigns exactly one category to every device
// record. Rule groups run in a fixed order and the first match wins;
// a record nothing matches falls back to the Other category, never an
// error.
package classify

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/identity"
	"github.com/stenbroen/assetsync/pkg/normalize"
)

// Engine evaluates the rule tables. Safe for concurrent use.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine returns a classification engine logging fallbacks to the
// given logger.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// signals are the normalized attributes the rule groups inspect.
type signals struct {
	name         string
	model        string
	manufacturer string
	os           string
	services     string
}

func extract(rec asset.RawDeviceRecord) signals {
	return signals{
		name:         normalize.Key(rec.Attr(asset.AttrName)),
		model:        normalize.Key(rec.Attr(asset.AttrModel)),
		manufacturer: normalize.Key(rec.Attr(asset.AttrManufacturer)),
		os:           normalize.Key(rec.Attr(asset.AttrOS)),
		services:     normalize.Key(rec.Attr(asset.AttrServices)),
	}
}

// Classify determines the category for a record. A static override hit
// short-circuits every rule group.
func (e *Engine) Classify(rec asset.RawDeviceRecord, res identity.Resolution) asset.Category {
	if res.Override != nil {
		return res.Override.AssetCategory()
	}

	sig := extract(rec)

	if c, ok := matchNetwork(sig); ok {
		return c
	}
	if matchVirtualMachine(sig) {
		return asset.CategoryVirtualMachine
	}
	if containsAny(sig.os, serverKeywords) || containsAny(sig.model, serverKeywords) {
		return asset.CategoryServer
	}
	if strings.Contains(sig.os, "ios") {
		if containsAny(sig.model, iosTabletKeywords) || containsAny(sig.name, iosTabletKeywords) {
			return asset.CategoryTablet
		}
		return asset.CategoryMobilePhone
	}
	if strings.Contains(sig.os, "android") {
		return classifyAndroid(sig)
	}
	if strings.Contains(sig.os, "windows") || strings.Contains(sig.os, "mac") {
		return classifyComputer(sig)
	}
	if containsAny(sig.model, iotKeywords) || containsAny(sig.os, iotKeywords) {
		return asset.CategoryIoTDevice
	}
	if c, ok := matchServices(sig); ok {
		return c
	}

	e.logger.Debug().
		Str("source", rec.Source.String()).
		Str("model", rec.Attr(asset.AttrModel)).
		Str("manufacturer", rec.Attr(asset.AttrManufacturer)).
		Str("os", rec.Attr(asset.AttrOS)).
		Msg("no classification rule matched, falling back")
	return asset.CategoryOther
}

func matchNetwork(sig signals) (asset.Category, bool) {
	for _, rule := range networkRules {
		if containsAny(sig.manufacturer, rule.vendors) && containsAny(sig.model, rule.modelKeywords) {
			return rule.category, true
		}
	}
	return "", false
}

func matchVirtualMachine(sig signals) bool {
	return containsAny(sig.manufacturer, virtualMachineRule.vendors) &&
		containsAny(sig.model, virtualMachineRule.modelKeywords)
}

func classifyAndroid(sig signals) asset.Category {
	if containsAny(sig.model, androidTabletKeywords) || equalsAny(sig.manufacturer, androidTabletVendors) {
		return asset.CategoryTablet
	}
	if containsAny(sig.model, androidIoTKeywords) {
		return asset.CategoryIoTDevice
	}
	return asset.CategoryMobilePhone
}

// classifyComputer splits windows/mac hardware. Laptop markers are
// checked first; a model matching both sides classifies Laptop.
// Everything unmatched also defaults to Laptop.
func classifyComputer(sig signals) asset.Category {
	if containsAny(sig.model, laptopKeywords) ||
		prefixMatch(sig.manufacturer, sig.model, laptopVendorPrefixes) {
		return asset.CategoryLaptop
	}
	if containsAny(sig.model, desktopKeywords) ||
		prefixMatch(sig.manufacturer, sig.model, desktopVendorPrefixes) ||
		containsAny(sig.os, desktopOSKeywords) {
		return asset.CategoryDesktop
	}
	return asset.CategoryLaptop
}

func matchServices(sig signals) (asset.Category, bool) {
	if sig.services == "" {
		return "", false
	}
	// A machine answering on domain plus directory ports is a DC.
	if strings.Contains(sig.services, "domain") && strings.Contains(sig.services, "ldap") {
		return asset.CategoryServer, true
	}
	for _, rule := range serviceRules {
		if containsAny(sig.services, rule.keywords) {
			return rule.category, true
		}
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func equalsAny(s string, values []string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}

func prefixMatch(manufacturer, model string, prefixes map[string][]string) bool {
	for vendor, pfxs := range prefixes {
		if !strings.Contains(manufacturer, vendor) {
			continue
		}
		for _, p := range pfxs {
			if strings.HasPrefix(model, p) {
				return true
			}
		}
	}
	return false
}
