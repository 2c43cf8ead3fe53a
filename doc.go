// Package cmdsnap runs external programs from Go tests and snapshots what
// they did.
//
// A value that implements [Spawner] is executed once, producing an [Info]
// describing the invocation and an [Output] holding its exit status and
// captured streams. [Render] turns the output into a fixed text block which
// the assertion helpers compare against a stored snapshot:
//
//	func TestEcho(t *testing.T) {
//		cmdsnap.AssertCmdSnapshot(t, cmdsnap.NewCommand("echo", "42"))
//	}
//
// Snapshots live in testdata/snapshots next to the test. A mismatch writes a
// pending .snap.new file and fails the test; the cmdsnap command accepts or
// rejects pending snapshots. Set CMDSNAP_UPDATE=always to overwrite
// baselines directly.
//
// Stdin can be attached to any Spawner with [PassStdin]:
//
//	cmdsnap.AssertCmdSnapshot(t, cmdsnap.PassStdin(cmdsnap.NewCommand("cat"), "Hello World!"))
package cmdsnap

// Version is the module release.
const Version = "0.4.0"
