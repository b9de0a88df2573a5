// Package rrc implements the NR RRC connection control procedures on top of
// the proc registry.
//
// A Stack holds the state the procedures share (RRC state, serving cell,
// PHY configuration, pending NAS PDU) and the lower layers they drive. Four
// procedures run on it:
//
//   - CellSelection: decides whether the serving cell is suitable
//   - SetupRequest: waits for cell selection and sends RRCSetupRequest
//   - ConnectionSetup: applies RRCSetup and sends RRCSetupComplete
//   - Reconfiguration: applies an RRCReconfiguration without handover
//
// Lower-layer results (cell-select results, configuration confirmations,
// timer expiries) enter through the Stack methods of the same name and are
// routed to whichever procedure is waiting for them.
package rrc
