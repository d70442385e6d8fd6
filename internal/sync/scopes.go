package sync

// ManagerScope serializes manager construction and reconciliation passes
// across processes.
var ManagerScope = LockScope{Kind: "manager", Name: "manager-factory"}

const ReconcileNotifyChannel = "open_bas_reconcile_requested"
