package refactor

// MaintenanceChecklist is the body of every created refactor issue.
const MaintenanceChecklist = `## Codebase maintenance

This issue was opened automatically because recent completed work contained no
refactoring. Spend this cycle on cleanup rather than new features.

### Scope
- [ ] Remove dead code, unused exports and stale feature flags
- [ ] Consolidate duplicated helpers into shared modules
- [ ] Split oversized files and functions along clear responsibilities
- [ ] Tighten names, types and error handling where they obscure intent
- [ ] Update or remove outdated comments and documentation
- [ ] Bring dependencies up to date where it is low risk
- [ ] Add tests around the code touched by this cleanup

### Constraints
- No behavior changes visible to users
- Keep the change reviewable; open follow-up issues for larger rewrites
- All existing tests must pass
`
