package classify

import "github.com/stenbroen/assetsync/pkg/asset"

// networkRule matches a network device class when the manufacturer
// contains a vendor token AND the model contains a model keyword.
type networkRule struct {
	category      asset.Category
	vendors       []string
	modelKeywords []string
}

// networkRules are evaluated in order; firewalls first so that a
// Meraki MX is never mistaken for a Meraki MS switch.
var networkRules = []networkRule{
	{
		category:      asset.CategoryFirewall,
		vendors:       []string{"cisco", "meraki", "fortinet", "palo alto", "sonicwall", "juniper", "checkpoint"},
		modelKeywords: []string{"firewall", "asa", "srx", "pa-", "mx", "security gateway", "firepower"},
	},
	{
		category:      asset.CategorySwitch,
		vendors:       []string{"cisco", "juniper", "aruba", "hp", "dell", "meraki", "ubiquiti"},
		modelKeywords: []string{"switch", "catalyst", "nexus", "comware", "procurve", "ex", "ms", "edgeswitch"},
	},
	{
		category:      asset.CategoryRouter,
		vendors:       []string{"cisco", "juniper", "mikrotik", "ubiquiti"},
		modelKeywords: []string{"router", "isr", "asr", "edgerouter"},
	},
	{
		category:      asset.CategoryAccessPoint,
		vendors:       []string{"cisco", "meraki", "aruba", "ubiquiti", "ruckus"},
		modelKeywords: []string{"access point", "ap", "aironet", "unifi", "mr"},
	},
}

// virtualMachineRule matches hypervisor products.
var virtualMachineRule = struct {
	vendors       []string
	modelKeywords []string
}{
	vendors:       []string{"vmware", "virtualbox", "qemu", "microsoft corporation"},
	modelKeywords: []string{"virtual machine", "vm"},
}

var serverKeywords = []string{"server"}

// iOS devices default to phone unless the model or name says iPad.
var iosTabletKeywords = []string{"ipad", "ipad pro", "ipad air", "ipad mini"}

// Android splits three ways: tablet, meeting-room appliance, phone.
var (
	androidTabletKeywords = []string{"tablet", "tab"}
	androidTabletVendors  = []string{"samsung", "lenovo", "huawei"}
	androidIoTKeywords    = []string{"meetingbar", "roompanel", "ctp"}
)

// Computer rules split windows/mac hardware into laptop and desktop.
// Lenovo encodes the form factor in the leading digits of its machine
// type, so bare numeric models get prefix matching.
var (
	laptopKeywords = []string{
		"laptop", "notebook", "book", "zenbook", "vivobook",
		"thinkpad", "latitude", "xps", "precision", "elitebook",
		"probook", "spectre", "envy", "surface laptop", "studiobook",
		"proart", "macbook", "macbook pro", "macbook air",
	}
	laptopVendorPrefixes = map[string][]string{
		"lenovo": {"20", "21", "40"},
	}
	desktopKeywords = []string{
		"desktop", "workstation", "station", "studio", "thinkcentre",
		"ideacentre", "thinkstation", "neo", "tower", "sff", "tiny",
		"all-in-one", "aio", "m70s", "m70t", "m70q", "m90s", "m90t",
		"m90q", "m75s", "m75t", "m75q", "p320", "p520", "p360", "p340",
		"imac", "mac mini", "mac studio", "mac pro", "zbook", "z840",
		"z640", "z440", "z240", "z620", "precision", "proart station",
	}
	desktopVendorPrefixes = map[string][]string{
		"lenovo": {"10", "11", "12", "30"},
	}
	desktopOSKeywords = []string{"desktop"}
)

var iotKeywords = []string{"iot"}

// serviceRule maps open-service hints from scan records to a category.
// Weak signal, consulted only after hardware attributes gave nothing.
type serviceRule struct {
	category asset.Category
	keywords []string
}

var serviceRules = []serviceRule{
	{category: asset.CategoryPrinter, keywords: []string{"ipp", "jetdirect", "printer", "cups"}},
	{category: asset.CategoryStorageDevice, keywords: []string{"nfs", "smb", "cifs", "iscsi"}},
	{category: asset.CategoryServer, keywords: []string{"mysql", "mssql", "postgresql", "oracle", "mongodb"}},
}
