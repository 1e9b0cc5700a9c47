package atom

// Dir is one of the 8 compass directions (0..7) or DirNo.
//
//	0 1 2
//	7 X 3
//	6 5 4
type Dir uint8

const (
	DirLeftUp Dir = iota
	DirUp
	DirUpRight
	DirRight
	DirRightDown
	DirDown
	DirDownLeft
	DirLeft

	// DirNo marks "no direction": the bonded neighbour is no longer adjacent.
	DirNo Dir = 0xFF
)

// DirsLen is the number of real directions.
const DirsLen = 8

var dirNames = [DirsLen]string{"left-up", "up", "up-right", "right", "right-down", "down", "down-left", "left"}

func (d Dir) Valid() bool { return d < DirsLen }

func (d Dir) String() string {
	if !d.Valid() {
		return "none"
	}
	return dirNames[d]
}

// Reverse returns the opposite direction. DirNo stays DirNo.
func (d Dir) Reverse() Dir {
	if !d.Valid() {
		return DirNo
	}
	return (d + 4) % DirsLen
}

// Delta returns the unit step of d with y growing downward.
func (d Dir) Delta() (dx, dy int) {
	if !d.Valid() {
		return 0, 0
	}
	v := dirDeltas[d]
	return v[0], v[1]
}

var dirDeltas = [DirsLen][2]int{
	{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0},
}

const no = DirNo

// dirMovAtom[d0][dir]: bond direction on the atom that slid one cell in dir,
// whose bond pointed in d0 before the move.
var dirMovAtom = [DirsLen][DirsLen]Dir{
	{no, 7, no, no, no, no, no, 1},
	{3, no, 7, 0, no, no, no, 2},
	{no, 3, no, 1, no, no, no, no},
	{no, 4, 5, no, 1, 2, no, no},
	{no, no, no, 5, no, 3, no, no},
	{no, no, no, 6, 7, no, 3, 4},
	{no, no, no, no, no, 7, no, 5},
	{5, 6, no, no, no, 0, 1, no},
}

// dirNearAtom[rev][dir]: bond direction on the stationary neighbour whose bond
// pointed in rev toward an atom that slid one cell in dir.
var dirNearAtom = [DirsLen][DirsLen]Dir{
	{no, no, no, 1, no, 7, no, no},
	{no, no, no, 2, 3, no, 7, 0},
	{no, no, no, no, no, 3, no, 1},
	{1, 2, no, no, no, 4, 5, no},
	{no, 3, no, no, no, no, no, 5},
	{7, no, 3, 4, no, no, no, 6},
	{no, 7, no, 5, no, no, no, no},
	{no, 0, 1, no, 5, 6, no, no},
}

// MovedDir returns the new bond direction on a moved atom, or DirNo when the
// neighbour ends up farther than one cell away.
func MovedDir(d0, dir Dir) Dir {
	if !d0.Valid() || !dir.Valid() {
		return DirNo
	}
	return dirMovAtom[d0][dir]
}

// NearDir returns the new bond direction on the stationary neighbour. rev is the
// neighbour's direction toward the moved atom before the move.
func NearDir(rev, dir Dir) Dir {
	if !rev.Valid() || !dir.Valid() {
		return DirNo
	}
	return dirNearAtom[rev][dir]
}
