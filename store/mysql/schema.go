package mysql

const schema = `
create table users
(
	user_id int unsigned not null
		primary key,
	uid varchar(20) not null,
	email_verified tinyint(1) default 0 not null,
	is_banned tinyint(1) default 0 not null,
	bonus_points bigint unsigned default 0 not null,
	constraint users_uid_uindex
		unique (uid)
);

create table torrent
(
	info_hash binary(20) not null
		primary key,
	is_freeleech tinyint(1) default 0 not null,
	is_deleted tinyint(1) default 0 not null,
	snatches int unsigned default 0 not null
);

create table progress
(
	user_id int unsigned not null,
	info_hash binary(20) not null,
	up_session bigint unsigned default 0 not null,
	up_total bigint unsigned default 0 not null,
	dn_session bigint unsigned default 0 not null,
	dn_total bigint unsigned default 0 not null,
	remaining bigint unsigned default 0 not null,
	primary key (user_id, info_hash)
);
`
