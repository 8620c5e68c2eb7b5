package room

// MicCounts is the closed set of allowed seat counts.
var MicCounts = []int{2, 6, 12, 16, 20}

// vipMicsByTotal maps a total mic count to its number of VIP seats.
// VIP seats always occupy seat numbers 1..vip.
var vipMicsByTotal = map[int]int{
	2:  0,
	6:  1,
	12: 2,
	16: 3,
	20: 4,
}

type Layout struct {
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	Type       string `json:"type"`
	VIPSlots   int    `json:"vip_slots"`
	GuestSlots int    `json:"guest_slots"`
}

var layoutByTotal = map[int]Layout{
	2:  {Rows: 1, Cols: 2, Type: "horizontal"},
	6:  {Rows: 2, Cols: 3, Type: "circle"},
	12: {Rows: 3, Cols: 4, Type: "grid"},
	16: {Rows: 4, Cols: 4, Type: "square"},
	20: {Rows: 4, Cols: 5, Type: "grid"},
}

func ValidMicCount(totalMics int) bool {
	_, ok := vipMicsByTotal[totalMics]
	return ok
}

func VIPMicsFor(totalMics int) int {
	return vipMicsByTotal[totalMics]
}

// LayoutFor returns the seat grid descriptor for a mic count.
func LayoutFor(totalMics int) (Layout, error) {
	l, ok := layoutByTotal[totalMics]
	if !ok {
		return Layout{}, ErrInvalidMicCount
	}

	vip := vipMicsByTotal[totalMics]
	l.VIPSlots = vip
	l.GuestSlots = totalMics - vip

	return l, nil
}

// newSeats builds an empty seat array of the given size, VIP flags set
// on seat numbers 1..vip.
func newSeats(totalMics int) []Seat {
	vip := vipMicsByTotal[totalMics]
	seats := make([]Seat, totalMics)
	for i := range seats {
		seats[i] = Seat{
			SeatNumber: i + 1,
			IsVIP:      i < vip,
		}
	}

	return seats
}
