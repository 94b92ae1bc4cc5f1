package cmd

import (
	"fmt"
	"os"
)

type CompletionCmd struct {
	Shell string `arg:"" help:"Shell type: bash, zsh, or fish"`
}

func (c *CompletionCmd) Run() error {
	switch c.Shell {
	case "bash":
		fmt.Fprint(os.Stdout, bashCompletion)
	case "zsh":
		fmt.Fprint(os.Stdout, zshCompletion)
	case "fish":
		fmt.Fprint(os.Stdout, fishCompletion)
	default:
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", c.Shell)
	}
	return nil
}

const bashCompletion = `# bash completion for slic3mf

_slic3mf_completions() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "inspect extract repack arrange assemble completion version" -- ${cur}) )
        return 0
    fi

    case "${prev}" in
        -o|--output)
            COMPREPLY=( $(compgen -f -- ${cur}) )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            return 0
            ;;
    esac

    case "${COMP_WORDS[1]}" in
        assemble)
            COMPREPLY=( $(compgen -f -X '!*.@(yaml|yml)' -- ${cur}) )
            ;;
        inspect|extract|repack|arrange)
            COMPREPLY=( $(compgen -f -X '!*.3mf' -- ${cur}) )
            ;;
    esac
    return 0
}

complete -F _slic3mf_completions slic3mf
`

const zshCompletion = `#compdef slic3mf

_slic3mf() {
    local -a commands
    commands=(
        'inspect:Inspect a 3MF file and show its scene'
        'extract:Extract volume meshes to STL'
        'repack:Load a 3MF file and write it back out'
        'arrange:Re-place instances on the plate'
        'assemble:Build a 3MF archive from a YAML plan'
        'completion:Generate shell completion scripts'
        'version:Show version information'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
    else
        case "${words[2]}" in
            assemble) _files -g '*.(yaml|yml)' ;;
            completion) compadd bash zsh fish ;;
            *) _files -g '*.3mf' ;;
        esac
    fi
}

_slic3mf "$@"
`

const fishCompletion = `# fish completion for slic3mf

complete -c slic3mf -n '__fish_use_subcommand' -a inspect -d 'Inspect a 3MF file and show its scene'
complete -c slic3mf -n '__fish_use_subcommand' -a extract -d 'Extract volume meshes to STL'
complete -c slic3mf -n '__fish_use_subcommand' -a repack -d 'Load a 3MF file and write it back out'
complete -c slic3mf -n '__fish_use_subcommand' -a arrange -d 'Re-place instances on the plate'
complete -c slic3mf -n '__fish_use_subcommand' -a assemble -d 'Build a 3MF archive from a YAML plan'
complete -c slic3mf -n '__fish_use_subcommand' -a completion -d 'Generate shell completion scripts'
complete -c slic3mf -n '__fish_use_subcommand' -a version -d 'Show version information'
complete -c slic3mf -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
`
