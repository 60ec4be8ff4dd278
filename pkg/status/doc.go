/*
Package status writes files atomically and tracks what happened to each one.

	            +-------------+
	            |    Scope    |
	            | (temp files)|
	            +------+------+
	                   |
	            +------+------+
	            |   Manager   |
	            |  (writes)   |
	            +------+------+
	                   |
	      +------------+------------+
	      |                         |
	+-----+-----+             +-----+-----+
	| FileInfo  |             | Formatter |
	| (tracked) |             |  (logs)   |
	+-----------+             +-----------+

🎯 Purpose:
- Writes content through a temp file in the destination directory, then renames it
- Registers every temp file in a run-scoped Scope so an interrupted run leaves nothing behind
- Records a FileStatus per path for reporting

🔄 Flow:
1. The CLI creates one Scope per run and defers Release
2. Managers created for that run share the Scope
3. WriteFileAtomic registers the temp file, renames it, then forgets it
4. Release removes whatever is still registered

🔍 Example:

	scope := status.NewScope()
	defer scope.Release(ctx)

	mgr := status.New(root, scope)
	if err := mgr.WriteFileAtomic(ctx, "values.yaml", content); err != nil {
		return err
	}
*/
package status
