// Package cli implements the dutctl command-line interface.
//
// Every command is a package-level cobra.Command registered from an init
// function: DUT commands hang off "dutctl dut", the rest off the root.
//
//	dutctl dut discover     find DUTs on the network and register them
//	dutctl dut list         show or edit the registry, check entries
//	dutctl dut info         resolve attributes of one DUT
//	dutctl dut do           run named actions (reboot, login, ...)
//	dutctl dut shell        interactive shell or one command
//	dutctl dut push/pull    copy files
//	dutctl dut vnc          forward the DUT's VNC server
//	dutctl dut monitor      live status dashboard
//	dutctl config           inspect or create the config file
//	dutctl doctor           health checks for the setup and the fleet
//
// Commands load the config and build their collaborators through loadApp.
// The SSH dialer comes from newDialer, which tests swap for a mock.
//
// Errors are returned, never printed, and Execute turns them into the
// process exit status: remote exit codes pass through and interrupts
// exit 130.
package cli
