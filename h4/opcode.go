package h4

import "github.com/rigado/blemon"

// Opcode maps an H4 packet type to the monitor opcode for a packet
// travelling in dir. Commands always go to the controller and events
// always come from it.
func Opcode(typ byte, dir blemon.Direction) (uint16, bool) {
	switch typ {
	case CommandPacket:
		return blemon.OpCommandPkt, true
	case EventPacket:
		return blemon.OpEventPkt, true
	case ACLPacket:
		if dir == blemon.DirRx {
			return blemon.OpACLRxPkt, true
		}
		return blemon.OpACLTxPkt, true
	case SCOPacket:
		if dir == blemon.DirRx {
			return blemon.OpSCORxPkt, true
		}
		return blemon.OpSCOTxPkt, true
	default:
		return 0, false
	}
}
