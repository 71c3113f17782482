package asset

import (
	"slices"
	"strings"
)

// Category is the device category assigned by classification.
// The set is closed: every record ends up with exactly one of these,
// falling back to CategoryOther when nothing matches.
type Category string

// Device categories.
const (
	CategoryServer         Category = "Server"
	CategorySwitch         Category = "Switch"
	CategoryRouter         Category = "Router"
	CategoryFirewall       Category = "Firewall"
	CategoryAccessPoint    Category = "Access Point"
	CategoryPrinter        Category = "Printer"
	CategoryLaptop         Category = "Laptop"
	CategoryDesktop        Category = "Desktop"
	CategoryTablet         Category = "Tablet"
	CategoryMobilePhone    Category = "Mobile Phone"
	CategoryVirtualMachine Category = "Virtual Machine"
	CategoryIoTDevice      Category = "IoT Device"
	CategoryStorageDevice  Category = "Storage Device"
	CategoryOther          Category = "Other Device"
)

// String returns the string representation of a category.
func (c Category) String() string {
	return string(c)
}

// storeNames maps categories to the display names used by the
// downstream inventory store.
var storeNames = map[Category]string{
	CategoryServer:         "Servers",
	CategorySwitch:         "Switches",
	CategoryRouter:         "Routers",
	CategoryFirewall:       "Firewalls",
	CategoryAccessPoint:    "Access Points",
	CategoryPrinter:        "Printers",
	CategoryLaptop:         "Laptops",
	CategoryDesktop:        "Desktops",
	CategoryTablet:         "Tablets",
	CategoryMobilePhone:    "Mobile Phones",
	CategoryVirtualMachine: "Virtual Machines (On-Premises)",
	CategoryIoTDevice:      "IoT Devices",
	CategoryStorageDevice:  "Storage Devices",
	CategoryOther:          "Other Assets",
}

// StoreName returns the category name as the inventory store knows it.
func (c Category) StoreName() string {
	if name, ok := storeNames[c]; ok {
		return name
	}
	return storeNames[CategoryOther]
}

// Categories returns all categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryServer,
		CategorySwitch,
		CategoryRouter,
		CategoryFirewall,
		CategoryAccessPoint,
		CategoryPrinter,
		CategoryLaptop,
		CategoryDesktop,
		CategoryTablet,
		CategoryMobilePhone,
		CategoryVirtualMachine,
		CategoryIoTDevice,
		CategoryStorageDevice,
		CategoryOther,
	}
}

// IsValid returns true if the category is one of the defined constants.
func (c Category) IsValid() bool {
	return slices.Contains(Categories(), c)
}

// ParseCategory maps a free-form device type string to a Category.
// Unknown values map to CategoryOther, never an error: classification
// must always terminate with a category.
func ParseCategory(s string) Category {
	for _, c := range Categories() {
		if string(c) == s {
			return c
		}
	}
	// Accept store display names too, since override tables are often
	// written against the store's category list.
	for c, name := range storeNames {
		if name == s {
			return c
		}
	}
	if c, ok := categoryAliases[strings.ToLower(s)]; ok {
		return c
	}
	return CategoryOther
}

// categoryAliases covers shorthand device types that appear in
// hand-maintained override tables.
var categoryAliases = map[string]Category{
	"nas":         CategoryStorageDevice,
	"san":         CategoryStorageDevice,
	"storage":     CategoryStorageDevice,
	"ap":          CategoryAccessPoint,
	"wap":         CategoryAccessPoint,
	"vm":          CategoryVirtualMachine,
	"phone":       CategoryMobilePhone,
	"smartphone":  CategoryMobilePhone,
	"iot":         CategoryIoTDevice,
	"gateway":     CategoryRouter,
	"workstation": CategoryDesktop,
	"notebook":    CategoryLaptop,
}
