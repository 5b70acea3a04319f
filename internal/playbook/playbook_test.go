package playbook_test

import (
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/playbook"
	"github.com/vk/playparse/internal/template"
	"github.com/vk/playparse/internal/testutil"
)

func literalString(t *testing.T, v model.Value) string {
	t.Helper()
	require.True(t, v.IsLiteral(), "expected a literal, got unresolved %q (%s)", v.Expr, v.Reason)
	require.Equal(t, cty.String, v.Literal.Type())
	return v.Literal.AsString()
}

func TestParse_BasicPlay(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- name: Configure web
  hosts: webservers
  vars:
    http_port: 8080
  tasks:
    - name: Install nginx
      apt:
        name: nginx
        state: present
    - name: Render config
      template: src=nginx.conf.j2 dest=/etc/nginx/nginx.conf
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	pb := res.Playbook
	assert.Equal(t, "site.yml", pb.Meta.SourcePath)
	assert.Len(t, pb.Meta.Checksum, 64)
	assert.False(t, pb.FactsRequired)
	assert.Empty(t, pb.VaultIDs)

	require.Len(t, pb.Plays, 1)
	play := pb.Plays[0]
	assert.Equal(t, "Configure web", play.Name)
	assert.Equal(t, "webservers", play.Hosts)
	assert.True(t, cty.NumberIntVal(8080).RawEquals(play.Vars["http_port"].Literal))

	require.Len(t, play.Tasks, 2)
	first, second := play.Tasks[0], play.Tasks[1]

	assert.Equal(t, "task_0", first.ID)
	assert.Equal(t, "apt", first.Module)
	assert.Equal(t, "nginx", literalString(t, first.Args["name"]))
	assert.Equal(t, "present", literalString(t, first.Args["state"]))
	assert.Empty(t, first.DependsOn)

	assert.Equal(t, "task_1", second.ID)
	assert.Equal(t, "template", second.Module)
	assert.Equal(t, "nginx.conf.j2", literalString(t, second.Args["src"]))
	assert.Equal(t, "/etc/nginx/nginx.conf", literalString(t, second.Args["dest"]))
	assert.Equal(t, []string{"task_0"}, second.DependsOn)

	assert.Equal(t, []string{"task_0", "task_1"}, play.Order)
}

func TestParse_FreeformRawParams(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - command: echo hello world
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	task := res.Playbook.Plays[0].Tasks[0]
	assert.Equal(t, "command", task.Module)
	assert.Equal(t, "echo hello world", literalString(t, task.Args[playbook.RawParamsKey]))
}

func TestParse_PlayVarsChain(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  vars:
    base: /opt
    app_dir: "{{ base }}/app"
  tasks:
    - debug:
        msg: "{{ app_dir }}"
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	play := res.Playbook.Plays[0]
	assert.Equal(t, "/opt/app", literalString(t, play.Vars["app_dir"]))
	assert.Equal(t, "/opt/app", literalString(t, play.Tasks[0].Args["msg"]))
}

func TestParse_WhenResolved(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  vars:
    enabled: true
    http_port: 8080
  tasks:
    - debug:
        msg: gated
      when:
        - enabled
        - http_port > 80
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	task := res.Playbook.Plays[0].Tasks[0]
	require.NotNil(t, task.When)
	require.True(t, task.When.IsLiteral())
	assert.True(t, task.When.Literal.True())
	assert.False(t, res.Playbook.FactsRequired)
}

func TestParse_WhenNeedsRuntimeFacts(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - apt:
        name: aptitude
      when: ansible_os_family == 'Debian'
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	task := res.Playbook.Plays[0].Tasks[0]
	require.NotNil(t, task.When)
	assert.True(t, task.When.Unresolved)
	assert.Equal(t, "ansible_os_family == 'Debian'", task.When.Expr)
	assert.Equal(t, model.ReasonRuntimeFact, task.When.Reason)
	assert.True(t, res.Playbook.FactsRequired)
}

func TestParse_FactSeedResolvesRuntimeNames(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybookWith(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - debug:
        msg: "{{ ansible_hostname }}"
`,
	}, testutil.ParseOptions{
		Facts: template.FactSeed{"ansible_hostname": cty.StringVal("web1")},
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	task := res.Playbook.Plays[0].Tasks[0]
	assert.Equal(t, "web1", literalString(t, task.Args["msg"]))
	assert.False(t, res.Playbook.FactsRequired)
}

func TestParse_LoopAndRegister(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - name: Create users
      user:
        name: "{{ item }}"
      loop:
        - alice
        - bob
      register: created
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	task := res.Playbook.Plays[0].Tasks[0]
	require.NotNil(t, task.Loop)
	require.True(t, task.Loop.IsLiteral())
	assert.Equal(t, 2, task.Loop.Literal.LengthInt())
	assert.Equal(t, "created", task.Register)

	// The item placeholder is runtime-only; the arg stays verbatim.
	name := task.Args["name"]
	assert.True(t, name.Unresolved)
	assert.Equal(t, "{{ item }}", name.Expr)
	assert.Equal(t, model.ReasonRuntimeFact, name.Reason)
}

func TestParse_NotifyAndHandlers(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - name: Render config
      template: src=a.j2 dest=/etc/a.conf
      notify: restart nginx
  handlers:
    - name: restart nginx
      service:
        name: nginx
        state: restarted
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	play := res.Playbook.Plays[0]
	require.Len(t, play.Handlers, 1)
	h := play.Handler("restart nginx")
	require.NotNil(t, h)
	assert.True(t, strings.HasPrefix(h.ID, "handler."))

	assert.Equal(t, []string{"restart nginx"}, play.Tasks[0].Notify)

	// The handler runs after the task that notifies it.
	taskAt := indexOf(play.Order, play.Tasks[0].ID)
	handlerAt := indexOf(play.Order, h.ID)
	require.GreaterOrEqual(t, taskAt, 0)
	require.GreaterOrEqual(t, handlerAt, 0)
	assert.Greater(t, handlerAt, taskAt)
}

func TestParse_ExplicitDependencies(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - name: a
      command: echo a
    - name: b
      command: echo b
    - name: c
      command: echo c
      dependencies:
        - task_0
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	play := res.Playbook.Plays[0]
	assert.Equal(t, []string{"task_0"}, play.Tasks[2].DependsOn)
	// c only waits on a, so topological order places it by declaration scan.
	assert.Equal(t, []string{"task_0", "task_1", "task_2"}, play.Order)
}

func TestParse_UnknownModuleSuggestion(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - sevice:
        name: nginx
`,
	})
	require.NoError(t, res.Err)
	require.False(t, res.Diagnostics.HasErrors())

	d := testutil.RequireDiag(t, res.Diagnostics, playbook.DiagUnknownModule)
	assert.Equal(t, hcl.DiagWarning, d.Severity)
	assert.Contains(t, d.Detail, `"service"`)

	// The task still parses with the name as written.
	assert.Equal(t, "sevice", res.Playbook.Plays[0].Tasks[0].Module)
}

func TestParse_CollectionModulesPass(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - community.general.ufw:
        rule: allow
        port: "22"
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)
	assert.Equal(t, "community.general.ufw", res.Playbook.Plays[0].Tasks[0].Module)
}

func TestParse_TwoModulesInOneTask(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - apt:
        name: nginx
      copy:
        src: a
        dest: b
`,
	})
	require.NoError(t, res.Err)
	d := testutil.RequireDiag(t, res.Diagnostics, playbook.DiagBadPlaybook)
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Contains(t, d.Detail, "one module per task")
}

func TestParse_TaskWithoutModule(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - name: does nothing
      when: true
`,
	})
	require.NoError(t, res.Err)
	d := testutil.RequireDiag(t, res.Diagnostics, playbook.DiagBadPlaybook)
	assert.Contains(t, d.Detail, "invokes no module")
	assert.Empty(t, res.Playbook.Plays[0].Tasks)
}

func TestParse_PlayWithoutHosts(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- name: hostless
  tasks:
    - debug:
        msg: hi
`,
	})
	require.NoError(t, res.Err)
	d := testutil.RequireDiag(t, res.Diagnostics, playbook.DiagBadPlaybook)
	assert.Contains(t, d.Detail, "no hosts pattern")
}

func TestParse_RootSyntaxError(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": "- hosts: all\n  tasks: [unclosed\n",
	})
	require.NoError(t, res.Err)
	d := testutil.RequireDiag(t, res.Diagnostics, "Syntax error")
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Empty(t, res.Playbook.Plays)
}

func TestParse_ImportPlaybookSplice(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: web
  tasks:
    - command: echo first
- import_playbook: other/deploy.yml
`,
		"other/deploy.yml": `
- hosts: db
  tasks:
    - import_tasks: tasks/migrate.yml
`,
		"other/tasks/migrate.yml": `
- name: migrate
  command: /usr/bin/migrate
`,
	})
	require.NoError(t, res.Err)
	testutil.RequireNoErrorDiags(t, res.Diagnostics)

	pb := res.Playbook
	require.Len(t, pb.Plays, 2)
	assert.Equal(t, "web", pb.Plays[0].Hosts)
	assert.Equal(t, "db", pb.Plays[1].Hosts)

	// Includes inside a spliced playbook resolve relative to its own file.
	require.Len(t, pb.Plays[1].Tasks, 1)
	assert.Equal(t, "migrate", pb.Plays[1].Tasks[0].Name)
	assert.Equal(t, "migrate.task_1", pb.Plays[1].Tasks[0].ID)
}

func TestParse_PlaybookImportsItself(t *testing.T) {
	t.Parallel()

	res := testutil.ParsePlaybook(t, map[string]string{
		"site.yml": `
- hosts: all
  tasks:
    - command: echo ok
- import_playbook: site.yml
`,
	})
	require.NoError(t, res.Err)
	d := testutil.RequireDiag(t, res.Diagnostics, playbook.DiagCyclicInclude)
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Contains(t, d.Detail, "site.yml -> site.yml")
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}
