// Package task defines the unit-of-work contract consumed by the stagehand task
// graph. A Task carries a logical identity (`type.name`), a physical identity
// (`type.name.id`), the content Version it is bound to, the tasks it depends on,
// and a Process function that receives the results of those dependencies keyed
// by their Key values.
//
// Concrete variants embed *Base for the shared identity fields and implement
// Description and Process. Variants that discover dependencies at runtime may
// shadow Base.Dependencies; the returned sequence must stay the same for the
// duration of one scheduling pass.
package task
