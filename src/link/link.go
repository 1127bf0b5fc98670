package link

// Link is a duplex, newline-delimited text channel to a physical node. The
// round loop polls links in round-robin fashion, so ReadLine must never
// block.
type Link interface {
	// WriteLine sends one line to the node. The newline terminator is
	// appended by the implementation.
	WriteLine(line string) error

	// ReadLine returns the next complete line received from the node.
	// ok is false when no line is pending.
	ReadLine() (line string, ok bool)

	Close() error
}
