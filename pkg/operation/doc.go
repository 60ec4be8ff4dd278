/*
Package operation runs the envmirror pipeline.

	+---------+   +--------+   +---------+   +------+
	| resolve |-->| mirror |-->| prepare |-->| copy |
	+---------+   +--------+   +---------+   +--+---+
	                                            |
	+----------+   +---------+   +--------+   +-+---------+
	| manifest |<--| publish |<--| verify |<--| transform |
	+----------+   +---------+   +--------+   +-----------+

🎯 Each box is an Operation. The OperationRunner executes them in order,
prints a [step/total name] header per stage and stops at the first error.
Stages share a Run: the configuration, the git runner, the temp-file scope
and the Summary every stage writes its result into.

🔄 Commands:
  - Sync runs every stage; manifest only when a generator is configured
  - Status stops after verify and lists what a sync would commit
  - Verify compares the cached working copies without touching a remote
  - Clean removes the cached working copies

💡 Nothing is retried here. The only fallbacks live in the publish package.
*/
package operation
