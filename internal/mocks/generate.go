package mocks

//go:generate mockery --name PermissionChecker --srcpkg github.com/vellum-cms/vellum/internal/contentmanager --output ./contentmanager --outpkg contentmanagermocks --with-expecter
//go:generate mockery --name Store --srcpkg github.com/vellum-cms/vellum/internal/history --output ./history --outpkg historymocks --with-expecter
