package blemon

// Record opcodes understood by btmon.
const (
	OpNewIndex    uint16 = 0
	OpDelIndex    uint16 = 1
	OpCommandPkt  uint16 = 2
	OpEventPkt    uint16 = 3
	OpACLTxPkt    uint16 = 4
	OpACLRxPkt    uint16 = 5
	OpSCOTxPkt    uint16 = 6
	OpSCORxPkt    uint16 = 7
	OpOpenIndex   uint16 = 8
	OpCloseIndex  uint16 = 9
	OpIndexInfo   uint16 = 10
	OpVendorDiag  uint16 = 11
	OpSystemNote  uint16 = 12
	OpUserLogging uint16 = 13
)

// Controller bus types for NewIndex.
const (
	BusVirtual uint8 = iota
	BusUSB
	BusPCCard
	BusUART
	BusRS232
	BusPCI
	BusSDIO
	BusSPI
	BusI2C
	BusSMD
)

// Direction of a data packet relative to the host.
type Direction int

const (
	DirTx Direction = iota // host to controller
	DirRx                  // controller to host
)

var opNames = map[uint16]string{
	OpNewIndex:    "New Index",
	OpDelIndex:    "Delete Index",
	OpCommandPkt:  "Command",
	OpEventPkt:    "Event",
	OpACLTxPkt:    "ACL TX",
	OpACLRxPkt:    "ACL RX",
	OpSCOTxPkt:    "SCO TX",
	OpSCORxPkt:    "SCO RX",
	OpOpenIndex:   "Open Index",
	OpCloseIndex:  "Close Index",
	OpIndexInfo:   "Index Info",
	OpVendorDiag:  "Vendor Diagnostic",
	OpSystemNote:  "System Note",
	OpUserLogging: "User Logging",
}

// OpName returns a readable name for an opcode.
func OpName(op uint16) string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "Unknown"
}
