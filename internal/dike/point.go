package dike

// PointType identifies a characteristic point on a dike cross-section.
type PointType int

const (
	PointNone PointType = iota - 1
	MVBinnen
	Sloot1A // top of the ditch, outer side
	Sloot1C // ditch bottom, outer side
	Sloot1D // ditch bottom, inner side
	Sloot1B // top of the ditch, inner side
	Weg1
	Teen1
	Berm1A
	Berm1B
	Kruin1
	Kruin2
	Berm2A
	Berm2B
	Teen2
	Weg2
	Sloot2
	MVBuiten
)

// PointIDs lists the dataset column identifiers in canonical parse order.
// Each id maps to x<id>/y<id> columns in the warehouse export.
var PointIDs = []string{
	"MV_bin",
	"Sloot_1a",
	"Sloot_1c",
	"Sloot_1d",
	"Sloot_1b",
	"Weg_1",
	"Teen_1",
	"Berm_1a",
	"Berm_1b",
	"Kruin_1",
	"Kruin_2",
	"Berm_2a",
	"Berm_2b",
	"Teen_2",
	"Weg_2",
	"Sloot_2",
	"MV_bui",
}

var pointTypeByID = map[string]PointType{
	"MV_bin":   MVBinnen,
	"Sloot_1a": Sloot1A,
	"Sloot_1c": Sloot1C,
	"Sloot_1d": Sloot1D,
	"Sloot_1b": Sloot1B,
	"Weg_1":    Weg1,
	"Teen_1":   Teen1,
	"Berm_1a":  Berm1A,
	"Berm_1b":  Berm1B,
	"Kruin_1":  Kruin1,
	"Kruin_2":  Kruin2,
	"Berm_2a":  Berm2A,
	"Berm_2b":  Berm2B,
	"Teen_2":   Teen2,
	"Weg_2":    Weg2,
	"Sloot_2":  Sloot2,
	"MV_bui":   MVBuiten,
}

// PointTypeByID resolves a dataset point identifier to its PointType.
func PointTypeByID(id string) (PointType, bool) {
	t, ok := pointTypeByID[id]
	return t, ok
}

// ID returns the dataset identifier for the point type, or "" for PointNone.
func (t PointType) ID() string {
	for id, pt := range pointTypeByID {
		if pt == t {
			return id
		}
	}
	return ""
}

func (t PointType) String() string {
	if id := t.ID(); id != "" {
		return id
	}
	return "NONE"
}

// Point is a single point on a cross-section, x in m relative to the
// reference line, z in m NAP.
type Point struct {
	X    float64   `json:"x"`
	Z    float64   `json:"z"`
	Type PointType `json:"type"`
}
