/*
Package config loads and validates the envmirror run configuration.

	            +-------------+
	            |   Config    |
	            | (run spec)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   HCL    | |   JSON   |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Describes the source and target environments of a mirror run
- Carries transform, verify, publish and manifest settings
- Fills defaults in Validate so the rest of the code never checks for zero values

🔄 Flow:
1. Load picks a parser by extension and decodes the file
2. The CLI applies flag overrides
3. Validate rejects bad values and fills defaults

🔍 Example:

	cfg, err := config.Load(ctx, "envmirror.yaml")
	if err != nil {
		return err
	}
	cfg.Target.Namespace = "ac001001"
	if err := cfg.Validate(); err != nil {
		return err
	}
*/
package config
