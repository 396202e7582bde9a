package rules

// Default vocabularies. Keys are matched after folding (lower-case, accents
// stripped, hyphens and repeated spaces collapsed), so "Híbrido" and
// "HIBRIDO" both hit the same entry.

var defaultBrands = map[string]string{
	"bmw":           "BMW",
	"mercedes":      "Mercedes-Benz",
	"mercedes benz": "Mercedes-Benz",
	"mercedesbenz":  "Mercedes-Benz",
	"benz":          "Mercedes-Benz",
	"mb":            "Mercedes-Benz",
	"vw":            "Volkswagen",
	"volkswagen":    "Volkswagen",
	"land rover":    "Land Rover",
	"landrover":     "Land Rover",
	"range rover":   "Land Rover",
	"alfa romeo":    "Alfa Romeo",
	"mini":          "MINI",
	"mg":            "MG",
	"byd":           "BYD",
	"gmc":           "GMC",
	"jac":           "JAC",
	"baic":          "BAIC",
	"ssangyong":     "SsangYong",
	"chevy":         "Chevrolet",
}

var defaultFuelTypes = map[string]string{
	"gasolina":  "Gasoline",
	"gasoline":  "Gasoline",
	"diesel":    "Diesel",
	"hibrido":   "Hybrid",
	"hybrid":    "Hybrid",
	"electrico": "Electric",
	"electric":  "Electric",
	"gas lp":    "LPG",
	"glp":       "LPG",
}

var defaultColors = map[string]string{
	"negro":    "Black",
	"blanco":   "White",
	"gris":     "Gray",
	"azul":     "Blue",
	"rojo":     "Red",
	"plateado": "Silver",
	"plata":    "Silver",
	"cafe":     "Brown",
	"vino":     "Burgundy",
	"verde":    "Green",
	"amarillo": "Yellow",
	"beige":    "Beige",
	"dorado":   "Gold",
	"naranja":  "Orange",
	"celeste":  "Light Blue",
}

// Colour modifiers are moved in front of the base colour: "gris oscuro" -> "Dark Gray".
var defaultColorModifiers = map[string]string{
	"oscuro":   "Dark",
	"claro":    "Light",
	"metalico": "Metallic",
	"perlado":  "Pearl",
}

var defaultTransmissions = map[string]string{
	"manual":         "Manual",
	"automatico":     "Automatic",
	"automatica":     "Automatic",
	"automatic":      "Automatic",
	"cvt":            "CVT",
	"dual":           "Dual",
	"secuencial":     "Sequential",
	"semiautomatica": "Semi-automatic",
}

var defaultLuxuryBrands = []string{
	"BMW", "Mercedes-Benz", "Audi", "Porsche", "Lexus", "Jaguar", "Land Rover",
}

const (
	defaultMinYear       = 1950
	defaultMaxMileage    = 500000
	defaultMinEngineCC   = 500
	defaultMaxEngineCC   = 6000
	defaultMinExchange   = 400
	defaultMaxExchange   = 600
	defaultMinPriceUSD   = 1000
	defaultMaxPriceUSD   = 500000
	defaultMinPriceLocal = 500000
	defaultMaxPriceLocal = 250000000
)
